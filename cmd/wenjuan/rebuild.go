package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"wenjuan/eventing/registry"
	eventsql "wenjuan/eventing/store/sql"
	"wenjuan/projection"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
	"wenjuan/response"
	"wenjuan/storage/database"
	"wenjuan/storage/database/basic"
)

func newRebuildCommand() *cobra.Command {
	var (
		after       int64
		until       int64
		types       []string
		aggregateID string
		projections []string
		keepData    bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "从事件流重建读模型投影",
		Long: "清空读模型后按全局序列号重放事件流。通过范围与类型过滤可做\n" +
			"增量补放（配合 --keep-data 保留现有数据）。",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := basic.New(database.DBConfig{
				Driver:       cfg.Database.Driver,
				DSN:          cfg.Database.DSN,
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()

			eventStore := eventsql.NewSQLEventStore(db, "")
			if err := eventStore.InitSchema(ctx); err != nil {
				return err
			}

			questionnaireStore := readmodel.NewSQLQuestionnaireStore(db)
			if err := questionnaireStore.InitSchema(ctx); err != nil {
				return err
			}
			responseStore := readmodel.NewSQLResponseStore(db)
			if err := responseStore.InitSchema(ctx); err != nil {
				return err
			}
			checkpoints := projection.NewSQLCheckpointStore(db)
			if err := checkpoints.InitSchema(ctx); err != nil {
				return err
			}

			eventRegistry := registry.NewRegistry()
			if err := questionnaire.RegisterEvents(eventRegistry); err != nil {
				return err
			}
			if err := response.RegisterEvents(eventRegistry); err != nil {
				return err
			}

			manager, err := projection.NewManager(projection.ManagerOptions{
				EventStore:  eventStore,
				Registry:    eventRegistry,
				Checkpoints: checkpoints,
				ChunkSize:   cfg.Projection.ChunkSize,
			})
			if err != nil {
				return err
			}
			manager.Register(projection.NewQuestionnaireProjector(questionnaireStore))
			manager.Register(projection.NewResponseProjector(responseStore, questionnaireStore))

			opts := projection.RebuildOptions{
				AfterSequence: after,
				UntilSequence: until,
				Types:         types,
				Projections:   projections,
				SkipReset:     keepData,
			}
			if aggregateID != "" {
				id, err := uuid.Parse(aggregateID)
				if err != nil {
					return fmt.Errorf("invalid aggregate id %q: %w", aggregateID, err)
				}
				opts.AggregateID = id
			}

			result, err := manager.Rebuild(ctx, opts)
			if err != nil {
				return err
			}
			cmd.Printf("重建完成：处理 %d 个事件（跳过 %d），最后序列号 %d，耗时 %s\n",
				result.EventsProcessed, result.EventsSkipped, result.LastSequence, result.Duration)
			return nil
		},
	}

	cmd.Flags().Int64Var(&after, "after", 0, "起始全局序列号（不包含）")
	cmd.Flags().Int64Var(&until, "until", 0, "结束全局序列号（包含），0 表示直到流尾")
	cmd.Flags().StringSliceVar(&types, "types", nil, "仅重放指定事件标签")
	cmd.Flags().StringVar(&aggregateID, "aggregate", "", "仅重放指定聚合（UUID）")
	cmd.Flags().StringSliceVar(&projections, "projections", nil, "仅重建指定投影")
	cmd.Flags().BoolVar(&keepData, "keep-data", false, "保留现有读模型数据（增量补放）")
	return cmd
}
