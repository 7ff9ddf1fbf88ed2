/*
 * @date: 2026.10.18
 * @description: serve 子命令，启动后端服务
 */

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lss/internal/app/backend"
	"lss/internal/config"
)

func newServeCmd(st *cliState) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动后端服务",
		Long: `以常驻进程方式启动后端，接收 run --backend 提交的队列并逐个串行执行。

配置文件变更会被自动加载，日志级别/格式/输出即时生效。

示例:
  lss serve --config ./configs/config.yaml --port 17480`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				st.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := st.lm.Component("cli")
			if path := st.loader.GetConfigPath(); path != "" {
				watcher, err := config.NewConfigWatcher(path, st.cfg, st.lm.Component("config"))
				if err != nil {
					return err
				}
				watcher.AddCallback(func(_, newCfg *config.Config) error {
					if st.logLevel != "" {
						newCfg.Log.Level = st.logLevel
					}
					return st.lm.UpdateConfig(newCfg.Log)
				})
				if err := watcher.Start(); err != nil {
					log.WithError(err).Warn("config hot reload disabled")
				} else {
					defer watcher.Stop()
				}
			}

			app, err := backend.NewApp(st.cfg, st.lm)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "监听端口，覆盖配置文件中的 server.port")
	return cmd
}
