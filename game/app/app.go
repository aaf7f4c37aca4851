package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"okey/common/config"
	"okey/common/http"
	"okey/common/log"
	"okey/core/container"
	"okey/game/interfaces/status"
)

func Run(ctx context.Context, conf *config.GameConfiguration) error {
	gameContainer, err := container.NewGameContainer(conf)
	if err != nil {
		return fmt.Errorf("game 容器初始化失败: %w", err)
	}
	defer func() {
		if err := gameContainer.Close(); err != nil {
			log.Error("关闭 game 容器失败: %v", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if err := gameContainer.Start(runCtx); err != nil {
		return err
	}

	server := http.NewHttpServer(http.WithPort(conf.HttpPort), http.WithMode("release"))
	server.Use(http.LoggerMiddleware())
	status.Register(server, gameContainer.Service)
	go func() {
		log.Info("状态接口监听端口: %d", server.GetPort())
		if err := server.Start(); err != nil {
			log.Error("状态接口启动失败: %v", err)
		}
	}()

	stop := func() {
		log.Info("正在关闭 game 服务...")
		cancelRun()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				log.Warn("关闭状态接口失败: %v", err)
			}
			if err := gameContainer.Close(); err != nil {
				log.Warn("关闭 game 容器失败: %v", err)
			}
			close(done)
		}()

		select {
		case <-done:
			log.Info("game 服务已关闭")
		case <-shutdownCtx.Done():
			log.Warn("关闭 game 服务超时（5秒），defer 会确保资源最终被释放")
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(c)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case s := <-c:
			switch s {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				stop()
				log.Info("中断信号，服务停止")
				return nil
			case syscall.SIGHUP:
				stop()
				log.Info("挂起信号，服务停止")
				return nil
			default:
				return nil
			}
		}
	}
}
