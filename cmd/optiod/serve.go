package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/clients"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/internal/factory"
	"github.com/RustySnipers/optio/internal/inventory"
	"github.com/RustySnipers/optio/internal/lifecycle"
	"github.com/RustySnipers/optio/internal/logging"
	"github.com/RustySnipers/optio/internal/scanner"
	"github.com/RustySnipers/optio/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the optiod backend daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogFile, debug)
	log.Info().Str("version", version).Str("listen", cfg.ListenAddr).Msg("Starting optiod")

	sqlDB, err := db.ConnectToSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	if err := db.InitializeSchema(sqlDB); err != nil {
		return err
	}
	// Scans left queued or running by a previous process are dead
	if err := db.RecoverInterruptedScans(sqlDB); err != nil {
		return err
	}

	repos := db.NewRepositoryFactory(sqlDB, cfg.DatabaseName)
	dbManager := db.NewDBManager(sqlDB)

	registry, err := factory.NewRegistry(cfg.TemplatesDir)
	if err != nil {
		return err
	}

	clientService := clients.NewClientService(repos.NewClientRepository())
	factoryService := factory.NewFactoryService(registry, repos.NewScriptRepository(), cfg, dbManager)
	inventoryService := inventory.NewInventoryService(cfg,
		repos.NewAssetRepository(), repos.NewAssetGroupRepository(),
		repos.NewScanRepository(), dbManager)
	scannerService := scanner.NewScannerService(cfg, repos.NewScanRepository(), dbManager, inventoryService)

	router := buildRouter(cfg, clientService, factoryService, scannerService, inventoryService)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	manager := lifecycle.NewManager()
	manager.Register(&executorService{scanner: scannerService})
	manager.Register(&httpService{server: server})
	manager.StartAll()

	if nmap := scanner.CheckNmap(cfg.NmapBinary); nmap.Installed {
		log.Info().Str("version", nmap.Version).Str("path", nmap.Path).Msg("Probe tool found")
	} else {
		log.Warn().Str("binary", cfg.NmapBinary).Msg("Probe tool not found; scans will fail until installed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	err = manager.Shutdown(30 * time.Second)
	if closeErr := dbManager.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Error closing database")
	}
	log.Info().Msg("Shutdown complete")
	return err
}

func buildRouter(cfg *config.Config, clientService *clients.ClientService, factoryService *factory.FactoryService, scannerService *scanner.ScannerService, inventoryService *inventory.InventoryService) http.Handler {
	clientHandlers := clients.NewClientHandlers(clientService)
	factoryHandlers := factory.NewFactoryHandlers(factoryService)
	scanHandlers := scanner.NewScanHandlers(scannerService)
	inventoryHandlers := inventory.NewInventoryHandlers(inventoryService)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/clients", clientHandlers.CreateClient).Methods(http.MethodPost)
	api.HandleFunc("/clients", clientHandlers.ListClients).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", clientHandlers.GetClient).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", clientHandlers.DeleteClient).Methods(http.MethodDelete)

	api.HandleFunc("/factory/templates", factoryHandlers.ListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/factory/preview", factoryHandlers.GetScriptPreview).Methods(http.MethodPost)
	api.HandleFunc("/factory/validate", factoryHandlers.ValidateConfig).Methods(http.MethodPost)
	api.HandleFunc("/factory/generate", factoryHandlers.GenerateClientScript).Methods(http.MethodPost)
	api.HandleFunc("/factory/agent-script", factoryHandlers.GenerateAgentScript).Methods(http.MethodPost)
	api.HandleFunc("/clients/{clientId}/scripts", factoryHandlers.ListGeneratedScripts).Methods(http.MethodGet)

	api.HandleFunc("/scanner/validate-target", scanHandlers.ValidateTarget).Methods(http.MethodPost)
	api.HandleFunc("/scanner/preview-command", scanHandlers.PreviewCommand).Methods(http.MethodPost)
	api.HandleFunc("/scanner/scan-types", scanHandlers.ListScanTypes).Methods(http.MethodGet)
	api.HandleFunc("/scanner/common-ports", scanHandlers.ListCommonPorts).Methods(http.MethodGet)
	api.HandleFunc("/scanner/nmap-info", scanHandlers.GetNmapInfo).Methods(http.MethodGet)
	api.HandleFunc("/scans", scanHandlers.CreateScan).Methods(http.MethodPost)
	api.HandleFunc("/clients/{clientId}/scans", scanHandlers.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", scanHandlers.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/results", scanHandlers.GetScanResults).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/cancel", scanHandlers.CancelScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}", scanHandlers.DeleteScan).Methods(http.MethodDelete)

	api.HandleFunc("/clients/{clientId}/assets", inventoryHandlers.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", inventoryHandlers.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", inventoryHandlers.UpdateAsset).Methods(http.MethodPatch)
	api.HandleFunc("/assets/{id}", inventoryHandlers.DeleteAsset).Methods(http.MethodDelete)
	api.HandleFunc("/asset-groups", inventoryHandlers.CreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/clients/{clientId}/asset-groups", inventoryHandlers.ListGroups).Methods(http.MethodGet)
	api.HandleFunc("/asset-groups/{id}/members", inventoryHandlers.AddGroupMember).Methods(http.MethodPost)
	api.HandleFunc("/asset-groups/{id}/members/{assetId}", inventoryHandlers.RemoveGroupMember).Methods(http.MethodDelete)
	api.HandleFunc("/asset-groups/{id}", inventoryHandlers.DeleteGroup).Methods(http.MethodDelete)
	api.HandleFunc("/clients/{clientId}/stats", inventoryHandlers.GetNetworkStats).Methods(http.MethodGet)

	mw := middleware.NewMiddleware(cfg)
	return mw.Recovery(mw.CORS(mw.RequestLogging(r)))
}

// executorService adapts the scan executor to the lifecycle manager.
type executorService struct {
	scanner *scanner.ScannerService
}

func (s *executorService) Start(ctx context.Context) error {
	s.scanner.Start()
	<-ctx.Done()
	return ctx.Err()
}

func (s *executorService) Stop() error {
	s.scanner.Stop()
	return nil
}

func (s *executorService) Name() string { return "scan-executor" }

// httpService adapts the HTTP server to the lifecycle manager. It is
// registered last so it stops first: no new work is accepted while the
// executor drains.
type httpService struct {
	server *http.Server
}

func (s *httpService) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *httpService) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *httpService) Name() string { return "http-server" }
