package game

// LoadInfo 负载信息
// 用于计算 game 节点的综合负载评分
type LoadInfo struct {
	GameCount   int     // 进行中的对局数
	PlayerCount int     // 在座玩家数（不含机器人）
	CPUUsage    float64 // CPU 使用率（0-100）
	MemUsage    float64 // 内存使用率（0-100）
}

const loadCapacity = 100.0

// CalculateLoad 计算综合负载评分
// 权重：CPU 30%、内存 20%、对局数 25%、玩家数 25%
// 返回值越小表示负载越低
func (li *LoadInfo) CalculateLoad() float64 {
	games := min(float64(li.GameCount)/loadCapacity, 1.0)
	players := min(float64(li.PlayerCount)/loadCapacity, 1.0)
	return li.CPUUsage*0.3 + li.MemUsage*0.2 + games*100*0.25 + players*100*0.25
}
