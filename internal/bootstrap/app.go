package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appsvc "listwise/internal/app"
	"listwise/internal/cache"
	"listwise/internal/config"
	"listwise/internal/factor"
	"listwise/internal/platform/database"
	"listwise/internal/platform/logger"
	rabbitmqClient "listwise/internal/platform/rabbitmq"
	redisClient "listwise/internal/platform/redis"
	"listwise/internal/repository"
	"listwise/internal/stem"
	"listwise/internal/worker"
)

type App struct {
	Config          *config.Config
	Logger          *zap.Logger
	DB              *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	Publisher       *rabbitmqClient.EventPublisher
	RecomputeWorker *worker.RecomputeWorker

	Affinity        *appsvc.AffinityService
	Lists           *appsvc.ListService
	Recommendations *appsvc.RecommendationService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}

	a := Assemble(cfg, log, db, redisCli, mqConn)
	a.RecomputeWorker = worker.NewRecomputeWorker(mqConn, a.Recommendations, cfg.RabbitMQ.AffinityQueue, log)
	if err := a.RecomputeWorker.Start(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start recompute worker failed: %w", err)
	}

	log.Info("application ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("addr", cfg.HTTPAddr()))
	return a, nil
}

// Assemble wires repositories and services over already opened connections. A nil
// redis client disables the prediction cache and a nil broker connection disables
// event publishing.
func Assemble(cfg *config.Config, log *zap.Logger, db *gorm.DB, redisCli *redis.Client, mqConn *amqp.Connection) *App {
	normalizer := stem.Snowball{}
	affinityRepo := repository.NewAffinityRepository(db)
	stemRepo := repository.NewStemRepository(db)
	listRepo := repository.NewListRepository(db)

	var predictionCache appsvc.PredictionCache
	if redisCli != nil {
		predictionCache = cache.NewPredictionCache(
			redisCli,
			time.Duration(cfg.Redis.PredictionTTLSeconds)*time.Second,
		)
	}
	var (
		publisher      appsvc.EventPublisher
		eventPublisher *rabbitmqClient.EventPublisher
	)
	if mqConn != nil {
		eventPublisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.AffinityQueue, log)
		publisher = eventPublisher
	}

	affinitySvc := appsvc.NewAffinityService(affinityRepo, stemRepo, normalizer, publisher, predictionCache, log)
	listSvc := appsvc.NewListService(listRepo, affinitySvc, normalizer, cfg.Lists.TimeZone, log)
	recommendationSvc := appsvc.NewRecommendationService(
		affinityRepo,
		stemRepo,
		listSvc,
		predictionCache,
		normalizer,
		recommendationOptions(cfg),
		log,
	)

	return &App{
		Config:          cfg,
		Logger:          log,
		DB:              db,
		Redis:           redisCli,
		MQConn:          mqConn,
		Publisher:       eventPublisher,
		Affinity:        affinitySvc,
		Lists:           listSvc,
		Recommendations: recommendationSvc,
		StartedAt:       time.Now(),
	}
}

func recommendationOptions(cfg *config.Config) appsvc.RecommendationOptions {
	r, s := cfg.Recommender, cfg.Selection
	return appsvc.RecommendationOptions{
		Params: factor.Params{
			Rank:           r.Rank,
			LearningRate:   r.LearningRate,
			Regularization: r.Regularization,
			Epochs:         r.Epochs,
		},
		Init:               factor.Init{Seed: r.Seed, Min: r.InitMin, Max: r.InitMax},
		MinUsers:           r.MinUsers,
		HistoryThreshold:   s.HistoryThreshold,
		CommunityThreshold: s.CommunityThreshold,
		MaxResults:         s.MaxResults,
		MinHistoryLists:    s.MinHistoryLists,
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.RecomputeWorker != nil {
		a.RecomputeWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
