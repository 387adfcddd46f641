// Package app 负责组件装配
//
// 把事件存储、聚合仓储、题型与防重注册表、提交管道和投影引擎
// 按配置组装成一个可用的应用实例。装配只在进程启动时发生一次，
// 运行期各组件通过构造时注入的依赖协作。
package app

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"wenjuan/config"
	"wenjuan/domain/eventsourced"
	"wenjuan/eventing/registry"
	"wenjuan/eventing/store"
	eventsql "wenjuan/eventing/store/sql"
	"wenjuan/eventing/store/snapshot"
	"wenjuan/guard"
	"wenjuan/logging"
	"wenjuan/messaging"
	natstransport "wenjuan/messaging/transport/nats"
	synctransport "wenjuan/messaging/transport/sync"
	"wenjuan/pipeline"
	"wenjuan/projection"
	"wenjuan/qtype"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
	"wenjuan/response"
	"wenjuan/storage/database"
	"wenjuan/storage/database/basic"
)

// App 装配完成的应用实例
type App struct {
	DB       database.IDatabase
	Registry *registry.Registry

	EventStore    store.IEventStreamStore
	SnapshotStore snapshot.ISnapshotStore

	Questionnaires *eventsourced.Repository[*questionnaire.Questionnaire]
	Responses      *eventsourced.Repository[*response.Response]

	QuestionnaireReads readmodel.IQuestionnaireReadStore
	ResponseReads      readmodel.IResponseReadStore

	QuestionTypes *qtype.Registry
	Guards        *guard.Registry
	MarkStore     guard.IMarkStore

	Bus        messaging.IMessageBus
	Pipeline   *pipeline.Pipeline
	Projection *projection.Manager

	closers []func() error
}

// New 按配置装配应用
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	db, err := basic.New(database.DBConfig{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if err := a.initEventing(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initReadModels(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initGuards(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initMessaging(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.initPipeline()
	return a, nil
}

// Close 逆序释放全部资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.ComponentLogger("app").Warn(context.Background(),
				"释放资源失败", logging.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) initEventing(ctx context.Context, cfg *config.Config) error {
	a.Registry = registry.NewRegistry()
	if err := questionnaire.RegisterEvents(a.Registry); err != nil {
		return err
	}
	if err := response.RegisterEvents(a.Registry); err != nil {
		return err
	}

	eventStore := eventsql.NewSQLEventStore(a.DB, "")
	if err := eventStore.InitSchema(ctx); err != nil {
		return fmt.Errorf("init event store: %w", err)
	}
	a.EventStore = eventStore

	var strategy snapshot.IStrategy = snapshot.NeverStrategy{}
	if cfg.Snapshot.Interval > 0 {
		snapStore := snapshot.NewSQLStore(a.DB, "")
		if err := snapStore.InitSchema(ctx); err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
		a.SnapshotStore = snapStore
		strategy = snapshot.NewEventCountStrategy(cfg.Snapshot.Interval)
	}

	questionnaires, err := eventsourced.NewRepository(eventsourced.RepositoryOptions[*questionnaire.Questionnaire]{
		AggregateType:    questionnaire.AggregateType,
		Factory:          questionnaire.New,
		EventStore:       a.EventStore,
		Registry:         a.Registry,
		SnapshotStore:    a.SnapshotStore,
		SnapshotStrategy: strategy,
	})
	if err != nil {
		return err
	}
	a.Questionnaires = questionnaires

	// 答卷聚合事件极少，不配快照
	responses, err := eventsourced.NewRepository(eventsourced.RepositoryOptions[*response.Response]{
		AggregateType: response.AggregateType,
		Factory:       response.New,
		EventStore:    a.EventStore,
		Registry:      a.Registry,
	})
	if err != nil {
		return err
	}
	a.Responses = responses
	return nil
}

func (a *App) initReadModels(ctx context.Context, cfg *config.Config) error {
	questionnaireStore := readmodel.NewSQLQuestionnaireStore(a.DB)
	if err := questionnaireStore.InitSchema(ctx); err != nil {
		return fmt.Errorf("init questionnaire read models: %w", err)
	}
	a.QuestionnaireReads = readmodel.NewCachedQuestionnaireStore(questionnaireStore, 1024, 0)

	responseStore := readmodel.NewSQLResponseStore(a.DB)
	if err := responseStore.InitSchema(ctx); err != nil {
		return fmt.Errorf("init response read models: %w", err)
	}
	a.ResponseReads = responseStore

	checkpoints := projection.NewSQLCheckpointStore(a.DB)
	if err := checkpoints.InitSchema(ctx); err != nil {
		return fmt.Errorf("init projection checkpoints: %w", err)
	}

	manager, err := projection.NewManager(projection.ManagerOptions{
		EventStore:  a.EventStore,
		Registry:    a.Registry,
		Checkpoints: checkpoints,
		ChunkSize:   cfg.Projection.ChunkSize,
	})
	if err != nil {
		return err
	}
	manager.Register(projection.NewQuestionnaireProjector(a.QuestionnaireReads))
	manager.Register(projection.NewResponseProjector(a.ResponseReads, a.QuestionnaireReads))
	a.Projection = manager
	return nil
}

func (a *App) initGuards(ctx context.Context, cfg *config.Config) error {
	a.Guards = guard.NewRegistry()

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.MarkStore = guard.NewRedisMarkStore(client).WithTTL(cfg.Redis.GuardTTL)
		return nil
	}

	markStore := guard.NewSQLMarkStore(a.DB)
	if err := markStore.InitSchema(ctx); err != nil {
		return fmt.Errorf("init mark store: %w", err)
	}
	a.MarkStore = markStore
	return nil
}

func (a *App) initMessaging(ctx context.Context, cfg *config.Config) error {
	var transport messaging.Transport
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("wenjuan"))
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", cfg.NATS.URL, err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })
		transport = natstransport.NewNATSTransport(conn)
	} else {
		transport = synctransport.NewSyncTransport()
	}
	if err := transport.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, transport.Close)
	a.Bus = messaging.NewMessageBus(transport)
	return nil
}

func (a *App) initPipeline() {
	a.QuestionTypes = qtype.NewDefaultRegistry()
	writer := pipeline.NewResponseWriter(a.DB)
	// 明细表在装配期建好，提交路径不再做DDL
	if err := writer.InitSchema(context.Background()); err != nil {
		logging.ComponentLogger("app").Warn(context.Background(),
			"初始化答卷明细表失败", logging.Error(err))
	}

	a.Pipeline = pipeline.New(
		pipeline.NewEnsureQuestionnaireIsOpen(a.Questionnaires, a.ResponseReads),
		pipeline.NewValidateSubmission(qtype.NewValidator(a.QuestionTypes)),
		pipeline.NewCheckDuplicateSubmission(a.Guards, a.MarkStore),
		pipeline.NewSaveResponse(a.Responses, writer),
		pipeline.NewFireResponseEvent(a.Bus),
	)
}
