package main

import (
	"context"
	"fmt"
	"os"

	"okey/common/config"
	"okey/common/log"
	"okey/common/metrics"
	"okey/game/app"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	identifier string
)

var rootCmd = &cobra.Command{
	Use:   "game",
	Short: "okey 对局服务",
	Long:  `okey 对局服务，负责房间状态、回合推进与胡牌结算`,
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig(configFile)
		conf := config.Conf
		if identifier != "" {
			conf.ID = identifier
		}
		if cmd.Flags().Changed("logLevel") {
			conf.LogConf.Level = logLevel
		}
		log.InitLog(conf.AppName, conf.LogConf.Level)
		log.Info("配置文件: %+v", conf)

		config.OnReload(func(next *config.GameConfiguration) {
			log.SetLevel(next.LogConf.Level)
			log.Info("配置已热更新, log.level=%s", next.LogConf.Level)
		})

		if conf.MetricPort > 0 {
			go func() {
				log.Info("启动监控..., URL: http://localhost:%d/debug/statsviz/", conf.MetricPort)
				if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", conf.MetricPort)); err != nil {
					log.Error("监控服务退出: %v", err)
				}
			}()
		}

		if err := app.Run(context.Background(), conf); err != nil {
			log.Error("发生异常: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "resource/application.yml", "config file")
	rootCmd.Flags().StringVar(&logLevel, "logLevel", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&identifier, "identifier", "", "node id, overrides the id in config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}
