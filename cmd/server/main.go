package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/config"
	"seiji-fund-go/internal/handler"
	"seiji-fund-go/internal/middleware"
	"seiji-fund-go/internal/pipeline"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/internal/service"
	"seiji-fund-go/pkg/database"
	"seiji-fund-go/pkg/docai"
	"seiji-fund-go/pkg/embedding"
	"seiji-fund-go/pkg/es"
	"seiji-fund-go/pkg/kafka"
	"seiji-fund-go/pkg/log"
	"seiji-fund-go/pkg/pdfparse"
	"seiji-fund-go/pkg/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("配置加载完成，开始初始化依赖")

	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("初始化 MySQL 失败", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("同步表结构失败", err)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatal("初始化 Redis 失败", err)
	}
	store, err := storage.New(cfg.MinIO)
	if err != nil {
		log.Fatal("初始化 MinIO 失败", err)
	}
	embedder := embedding.NewClient(cfg.Embedding)
	indexer, err := es.New(cfg.Elasticsearch, embedder.Dimensions())
	if err != nil {
		log.Fatal("初始化 Elasticsearch 失败", err)
	}

	// 文本提取器：优先外部文档解析服务，未启用时用本地 PDF 解析
	var extractor pipeline.TextExtractor = pdfparse.NewExtractor()
	var tableProvider pipeline.TableProvider
	if cfg.DocAI.Enabled {
		docaiClient := docai.NewClient(cfg.DocAI.ServerURL)
		extractor = docai.NewTextAdapter(docaiClient)
		tableProvider = docai.NewTableAdapter(docaiClient)
		log.Infof("使用外部文档解析服务: %s", cfg.DocAI.ServerURL)
	}

	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	financialRepo := repository.NewFinancialRepository(db)
	locker := repository.NewRedisLock(rdb)

	processor := pipeline.NewProcessor(
		docRepo, chunkRepo, financialRepo,
		store, extractor, tableProvider, embedder, indexer, locker,
		pipeline.Config{
			ChunkSize:     cfg.Pipeline.ChunkSize,
			ChunkOverlap:  cfg.Pipeline.ChunkOverlap,
			ChunkStrategy: cfg.Pipeline.ChunkStrategy,
			LockTTL:       time.Duration(cfg.Pipeline.LockTTLSec) * time.Second,
		},
	)

	var producer *kafka.Producer
	var publisher service.TaskPublisher
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}

	uploadService := service.NewUploadService(docRepo, store, publisher, cfg.Upload.MaxFileSize)
	documentService := service.NewDocumentService(docRepo, chunkRepo, financialRepo, indexer, store)
	indexService := service.NewIndexService(docRepo, processor, cfg.Cron.BatchSize, cfg.Cron.MaxAttempts)
	searchService := service.NewSearchService(embedder, indexer)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.Kafka.Brokers != "" {
		go kafka.StartConsumer(consumerCtx, cfg.Kafka, rdb, indexService)
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	api := router.Group("/api/v1")
	{
		uploadHandler := handler.NewUploadHandler(uploadService)
		indexHandler := handler.NewIndexHandler(indexService)
		documentHandler := handler.NewDocumentHandler(documentService)
		searchHandler := handler.NewSearchHandler(searchService)
		cronHandler := handler.NewCronHandler(indexService)

		api.POST("/documents/upload", uploadHandler.Upload)
		api.POST("/documents/index", indexHandler.Index)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/:id", documentHandler.Get)
		api.DELETE("/documents/:id", documentHandler.Delete)
		api.GET("/search", searchHandler.Search)

		cron := api.Group("/cron", middleware.CronAuth(cfg.Cron.Secret))
		cron.GET("/process-queue", cronHandler.ProcessQueue)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Infof("服务启动，监听端口 %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("服务启动失败", err)
		}
	}()

	// 优雅停机：先停消费者，再给在途请求留出排空时间
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到退出信号，开始优雅停机")

	stopConsumer()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("服务停机异常", err)
	}
	log.Info("服务已退出")
}
