package main

import (
	"github.com/spf13/cobra"

	"wenjuan/config"
	"wenjuan/logging"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wenjuan",
		Short:         "问卷事件溯源核心的运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（YAML）")
	root.AddCommand(newRebuildCommand())
	return root
}

// loadConfig 加载配置并装配全局日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetLogger(logging.NewZerologLogger(logging.ParseLevel(cfg.Log.Level)))
	return cfg, nil
}
