package cmd

import (
	"context"
	"fmt"
	"time"

	"course-enrollment/internal/api/handlers"
	"course-enrollment/internal/api/router"
	"course-enrollment/internal/config"
	"course-enrollment/internal/infrastructure/cache"
	"course-enrollment/internal/infrastructure/database"
	"course-enrollment/internal/infrastructure/ledger"
	"course-enrollment/internal/infrastructure/queue"
	"course-enrollment/internal/infrastructure/repository"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/internal/service"
	"course-enrollment/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// application holds every long-lived component of a server or worker process.
type application struct {
	cfg *config.Config

	db    *gorm.DB
	redis redis.UniversalClient

	ledger   interfaces.StatusLedger
	producer interfaces.MessageProducer
	consumer interfaces.MessageConsumer

	metrics     *service.MetricsService
	settings    *service.SettingService
	enrollments *service.EnrollmentService
	worker      *service.EnrollmentWorker
	dispatcher  *service.MessageDispatcher
	idempotency *service.IdempotencyService
	tokens      *service.TokenService
}

// consumerQueue is implemented by every queue backend.
type consumerQueue interface {
	interfaces.MessageProducer
	interfaces.MessageConsumer
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{
		cfg:     cfg,
		metrics: service.NewMetricsService(),
		tokens:  service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	}

	db, err := database.NewConnection(database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db

	if err := database.HealthCheck(db); err != nil {
		app.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	if app.needsRedis() {
		app.redis = cache.NewRedisClient(cfg.Cache)
		if err := cache.HealthCheck(ctx, app.redis); err != nil {
			app.Close()
			return nil, fmt.Errorf("redis health check failed: %w", err)
		}
		logger.Info("Connected to redis at %s:%d", cfg.Cache.Host, cfg.Cache.Port)
	}

	var awsCfg *aws.Config
	if cfg.StatusLedger.Type == "dynamodb" || cfg.Queue.Type == "sqs" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	if app.ledger, err = app.newLedger(awsCfg); err != nil {
		app.Close()
		return nil, err
	}

	q, err := app.newQueue(awsCfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.producer = q
	app.consumer = q

	students := repository.NewStudentRepository(db)
	semesters := repository.NewSemesterRepository(db)
	classGroups := repository.NewClassGroupRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	schedules := repository.NewScheduleRepository(db)

	app.settings = service.NewSettingService(repository.NewSettingRepository(db), semesters)
	if err := app.settings.Reload(ctx); err != nil {
		logger.Warn("Failed to load settings at startup, will retry on first use: %v", err)
	}

	app.enrollments = service.NewEnrollmentService(
		students,
		semesters,
		classGroups,
		enrollmentRepo,
		service.NewConflictChecker(schedules, enrollmentRepo),
		app.settings,
		app.ledger,
		app.producer,
		app.metrics,
	)

	uow := repository.NewEnrollmentUnitOfWork(db, cfg.Enrollment.LockTimeout(), cfg.Enrollment.StatementTimeout())
	app.worker = service.NewEnrollmentWorker(uow, app.ledger, app.metrics)
	app.dispatcher = service.NewMessageDispatcher(app.worker)

	var idempotencyRepo interfaces.IdempotencyRepository
	if cfg.Cache.Type == "redis" {
		idempotencyRepo = repository.NewRedisIdempotencyRepository(app.redis)
	} else {
		idempotencyRepo = repository.NewMemoryIdempotencyRepository()
	}
	app.idempotency = service.NewIdempotencyService(idempotencyRepo)

	return app, nil
}

func (a *application) needsRedis() bool {
	return a.cfg.Cache.Type == "redis" || a.cfg.Queue.Type == "redis" || a.cfg.StatusLedger.Type == "redis"
}

func (a *application) newLedger(awsCfg *aws.Config) (interfaces.StatusLedger, error) {
	ttl := time.Duration(a.cfg.StatusLedger.TTLHours) * time.Hour

	switch a.cfg.StatusLedger.Type {
	case "dynamodb":
		endpoint := a.cfg.AWS.Endpoint
		client := dynamodb.NewFromConfig(*awsCfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		logger.Info("Using DynamoDB status ledger table %s", a.cfg.StatusLedger.TableName)
		return ledger.NewDynamoDBLedger(client, a.cfg.StatusLedger.TableName, ttl)
	case "redis":
		logger.Info("Using redis status ledger")
		return ledger.NewRedisLedger(a.redis, ttl), nil
	case "", "memory":
		logger.Warn("Using in-memory status ledger; batch status is lost on restart")
		return ledger.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unsupported status ledger type %q", a.cfg.StatusLedger.Type)
	}
}

func (a *application) newQueue(awsCfg *aws.Config) (consumerQueue, error) {
	opts := queue.OptionsFromConfig(a.cfg.Queue)

	switch a.cfg.Queue.Type {
	case "sqs":
		endpoint := a.cfg.AWS.Endpoint
		client := sqs.NewFromConfig(*awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		logger.Info("Using SQS FIFO queue %s", a.cfg.Queue.SQS.QueueURL)
		return queue.NewSQSQueue(client, a.cfg.Queue.SQS, opts)
	case "rabbitmq":
		logger.Info("Using RabbitMQ exchange %s", a.cfg.Queue.RabbitMQ.Exchange)
		return queue.NewRabbitMQQueue(a.cfg.Queue.RabbitMQ, opts)
	case "redis":
		logger.Info("Using redis queue with %d partitions", opts.Partitions)
		return queue.NewRedisQueue(a.redis, a.cfg.Queue.RedisKeyPrefix, opts), nil
	case "", "memory":
		logger.Info("Using in-memory queue with %d partitions", opts.Partitions)
		return queue.NewInMemoryQueue(a.cfg.Queue.BufferSize, opts), nil
	default:
		return nil, fmt.Errorf("unsupported queue type %q", a.cfg.Queue.Type)
	}
}

func (a *application) healthChecks() map[string]handlers.HealthCheckFunc {
	checks := map[string]handlers.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			return database.HealthCheck(a.db)
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return cache.HealthCheck(ctx, a.redis)
		}
	}
	return checks
}

func (a *application) routerDependencies() router.Dependencies {
	return router.Dependencies{
		EnrollmentService:  a.enrollments,
		SettingService:     a.settings,
		IdempotencyService: a.idempotency,
		Tokens:             a.tokens,
		Metrics:            a.metrics,
		HealthChecks:       a.healthChecks(),
	}
}

// Close releases connections. The consumer must already be stopped.
func (a *application) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warn("Failed to close queue: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis client: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
