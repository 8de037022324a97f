package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/appinit"
	"github.com/12Omega/blockchain-doc-sub002/internal/background"
	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/bcao/fabricbcao"
	"github.com/12Omega/blockchain-doc-sub002/internal/controller"
	"github.com/12Omega/blockchain-doc-sub002/internal/db"
	"github.com/12Omega/blockchain-doc-sub002/internal/localstore"
	"github.com/12Omega/blockchain-doc-sub002/internal/service"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage/uploadqueue"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/cipherutils"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/logutils"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// 退出码：64 表示配置不可用，70 表示运行期故障。
const (
	exitCodeConfig  = 64
	exitCodeRuntime = 70
)

func main() {
	var configPath, sdkConfigPath string

	// Functions to be used by the cli helper
	initFunc := getInitFunc(&configPath)
	serveFunc := getServeFunc(&configPath, &sdkConfigPath)

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:    "init",
				Aliases: []string{"i"},
				Usage:   "Migrate the database and probe the storage providers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "conf",
						Aliases:     []string{"c"},
						Value:       "server.yaml",
						EnvVars:     []string{"DCVC_CONF"},
						Destination: &configPath,
					},
				},
				Action: initFunc,
			},
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Start as server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "conf",
						Aliases:     []string{"c"},
						Value:       "server.yaml",
						EnvVars:     []string{"DCVC_CONF"},
						Destination: &configPath,
					},
					&cli.StringFlag{
						Name:        "sdkconf",
						Aliases:     []string{"s"},
						Value:       "config-network.yaml",
						EnvVars:     []string{"DCVC_SDK_CONF"},
						Destination: &sdkConfigPath,
					},
				},
				Action: serveFunc,
			},
		},
	}

	// Run the cli helper
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func getInitFunc(configPath *string) func(c *cli.Context) error {
	// The func for subcommand "init"
	initFunc := func(c *cli.Context) error {
		serverInfo, err := appinit.LoadServerInfo(*configPath)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		if serverInfo.Queue == nil {
			return cli.Exit(fmt.Errorf("配置文件缺少 queue 部分"), exitCodeConfig)
		}

		if err := logutils.Setup(serverInfo.LogLevel); err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		// Create the tables
		gormDB, err := appinit.SetupDatabase(serverInfo.MySQLDSN)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		if err := appinit.MigrateDatabase(gormDB); err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		log.Infoln("数据库表结构已就绪。")

		// Probe the storage providers
		localStore, err := localstore.New(serverInfo.LocalStorePath)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		providers, err := appinit.BuildProviders(serverInfo.StorageProviders, localStore)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		queue, err := uploadqueue.Open(serverInfo.Queue.Path)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		defer queue.Close()

		router := storage.NewRouter(providers, queue, serverInfo.GatewayPrefix)
		report := router.Health(context.Background())
		for _, health := range report.Providers {
			if health.OK {
				log.Infof("存储提供方 '%v' 可用。", health.Provider)
			} else {
				log.Warnf("存储提供方 '%v' 不可用: %v", health.Provider, health.Error)
			}
		}
		log.Infof("重试队列中有 %v 个待补传任务。", report.QueueDepth)

		return nil
	}

	return initFunc
}

func getServeFunc(configPath *string, sdkConfigPath *string) func(c *cli.Context) error {
	serveFunc := func(c *cli.Context) error {
		// Load serve info from `server.yaml`
		serverInfo, err := appinit.LoadServerInfo(*configPath)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		if serverInfo.User == nil || serverInfo.Ledger == nil || serverInfo.Queue == nil {
			return cli.Exit(fmt.Errorf("配置文件缺少 user、ledger 或 queue 部分"), exitCodeConfig)
		}

		if err := logutils.Setup(serverInfo.LogLevel); err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		suite, err := cipherutils.NewSuiteFromString(serverInfo.CipherSuite)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		masterKey, err := appinit.DecodeMasterKey(serverInfo.MasterKey, suite)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		// Create a Fabric SDK instance and the chaincode clients
		sdk, err := appinit.SetupSDK(*sdkConfigPath)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		defer sdk.Close()

		chaincodeCtx, err := appinit.NewChaincodeCtx(sdk, serverInfo.Ledger.ChannelID, serverInfo.Ledger.ChaincodeID, serverInfo.User.OrgName, serverInfo.User.UserID)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		anchorBCAO := fabricbcao.NewAnchorBCAOFabricImpl(chaincodeCtx)

		// Database handles
		gormDB, err := appinit.SetupDatabase(serverInfo.MySQLDSN)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		registry := db.NewDocumentRegistry(gormDB)
		verificationLog := db.NewVerificationLog(gormDB)

		// Storage layer: local fallback store, retry queue and the router
		localStore, err := localstore.New(serverInfo.LocalStorePath)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		providers, err := appinit.BuildProviders(serverInfo.StorageProviders, localStore)
		if err != nil {
			return cli.Exit(err, exitCodeConfig)
		}

		queue, err := uploadqueue.Open(serverInfo.Queue.Path)
		if err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		defer queue.Close()

		router := storage.NewRouter(providers, queue, serverInfo.GatewayPrefix)

		// Instantiate a document service
		documentSvc := &service.DocumentService{
			Registry:         registry,
			Router:           router,
			AnchorBCAO:       anchorBCAO,
			CipherSuite:      suite,
			MasterKey:        masterKey,
			MaxUploadBytes:   serverInfo.MaxUploadBytes,
			AllowedMimeTypes: serverInfo.AllowedMimeTypes,
		}

		// Instantiate a verification service
		verificationSvc := &service.VerificationService{
			Registry:   registry,
			Log:        verificationLog,
			Router:     router,
			AnchorBCAO: anchorBCAO,
			MasterKey:  masterKey,
		}

		// Prepare the upload queue drainer. Replayed uploads are pushed back
		// through the registration pipeline to finish the deferred anchoring.
		drainer := background.NewUploadQueueDrainer(router, documentSvc.HandleQueueReplay)
		if serverInfo.Queue.MaxAttempts > 0 {
			drainer.MaxAttempts = serverInfo.Queue.MaxAttempts
		}
		if serverInfo.Queue.PauseSeconds > 0 {
			drainer.Pause = time.Duration(serverInfo.Queue.PauseSeconds) * time.Second
		}

		if err := drainer.Start(); err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		// Instantiate controllers
		documentController := &controller.DocumentController{
			GroupName:   "/document",
			DocumentSvc: documentSvc,
		}

		verificationController := &controller.VerificationController{
			GroupName:       "/verification",
			VerificationSvc: verificationSvc,
		}

		adminController := &controller.AdminController{
			GroupName:       "/admin",
			Router:          router,
			Drainer:         drainer,
			VerificationSvc: verificationSvc,
		}

		// Register controller handlers
		ginRouter := gin.Default()
		ginRouter.Use(controller.CORSMiddleware())
		apiv1Group := ginRouter.Group("/api/v1")
		if err := controller.RegisterHandlers(apiv1Group, documentController); err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		if err := controller.RegisterHandlers(apiv1Group, verificationController); err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}
		if err := controller.RegisterHandlers(apiv1Group, adminController); err != nil {
			return cli.Exit(err, exitCodeRuntime)
		}

		// Start the HTTP server
		httpServer := &http.Server{
			Addr:    fmt.Sprintf(":%v", serverInfo.Port),
			Handler: ginRouter,
		}

		chanError := make(chan error)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil {
				chanError <- errors.Wrap(err, "无法启动 HTTP 服务器")
			}
		}()

		// Listen Ctrl+C signals. On receiving a signal stops the app elegantly
		chanQuit := make(chan os.Signal, 1)
		signal.Notify(chanQuit, os.Interrupt)
		select {
		case err := <-chanError:
			return cli.Exit(err, exitCodeRuntime)
		case <-chanQuit:
			log.Infoln("收到 Ctrl+C 信号，正在退出程序...")

			// Stop the HTTP server elegantly
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Infoln("正在停止 HTTP 服务器...")
			if err := httpServer.Shutdown(ctx); err != nil {
				return cli.Exit(errors.Wrap(err, "无法正常停止 HTTP 服务器"), exitCodeRuntime)
			}

			// Stop the upload queue drainer
			log.Infoln("正在停止上传补传器...")
			wg, err := drainer.Stop()
			if err != nil {
				return cli.Exit(err, exitCodeRuntime)
			}
			wg.Wait()
		}

		return nil
	}

	return serveFunc
}
