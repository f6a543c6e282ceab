// Package app assembles the flapi CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/auth/oidc"
	"github.com/datazoode/flapi/pkg/cache"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/credentials"
	"github.com/datazoode/flapi/pkg/endpoints"
	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/executor"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/networking"
	"github.com/datazoode/flapi/pkg/server"
	"github.com/datazoode/flapi/pkg/template"
	"github.com/datazoode/flapi/pkg/vfs"
)

// NewRootCommand builds the flapi CLI.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flapi",
		Short: "Configuration-driven data API gateway",
		Long:  "flapi exposes parameterized SQL templates as REST endpoints and MCP tools over an embedded analytical query engine.",
	}
	root.AddCommand(newServeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the project configuration and serve requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "flapi.yaml", "path to the project configuration")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	project, err := config.LoadProject(configPath)
	if err != nil {
		return err
	}

	eng, err := engine.Open(project.Engine.Path, project.Engine.CacheSchema, project.Engine.Settings)
	if err != nil {
		return err
	}
	defer eng.Close()

	creds := credentials.NewFromEnv()
	if err := creds.InstallAll(ctx, eng.SecretCatalog()); err != nil {
		return err
	}

	files, checker, err := buildVFS(project, creds)
	if err != nil {
		return err
	}
	for _, probe := range checker.CheckAll(ctx) {
		if !probe.Healthy {
			logger.Warnf("storage backend %s unhealthy at startup: %s", probe.Backend, probe.Error)
		}
	}

	repo, mcpAuth, err := loadEndpoints(ctx, project, files)
	if err != nil {
		return err
	}
	logger.Infof("loaded %d endpoints from %s", repo.Count(), project.TemplatePath)

	secretsStore := auth.NewSecretsStore()
	if err := auth.Bootstrap(ctx, secretsStore, eng, files, repo.All()); err != nil {
		return err
	}

	renderer := template.NewDefaultRenderer()
	readTemplate := templateReader(project, files)

	oidcValidator, err := buildOIDCValidator(project)
	if err != nil {
		return err
	}
	authMiddleware := auth.NewMiddleware(secretsStore, oidcValidator)

	exec := executor.New(eng)
	srv := server.New(repo, exec, renderer, readTemplate, authMiddleware, mcpAuth)

	events := cache.NewSyncEventRecorder(eng, project.Engine.CacheSchema)
	manager := cache.NewManager(eng, renderer, events, cacheTemplateReader(project, files))
	scheduler := cache.NewScheduler(manager, repo.All(), 4)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go scheduler.Run(ctx)
	go sessionCleanupLoop(ctx, srv)

	httpServer := &http.Server{
		Addr:              project.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("flapi listening on %s", project.Server.Address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildVFS assembles the scheme router with the configured cloud providers
// and the caching decorator.
func buildVFS(project *config.ProjectConfig, creds *credentials.Manager) (vfs.FileProvider, *vfs.HealthChecker, error) {
	router := vfs.NewRouter(vfs.NewLocalProvider())

	httpClient, err := networking.NewHttpClientBuilder().Build()
	if err != nil {
		return nil, nil, err
	}
	httpProvider := vfs.NewHTTPProvider(httpClient)
	router.Register("http", httpProvider)
	router.Register("https", httpProvider)

	if creds.S3.Configured() {
		client, err := buildS3Client(creds)
		if err != nil {
			logger.Warnf("s3 backend unavailable: %v", err)
		} else {
			router.Register("s3", vfs.NewS3Provider(client))
		}
	}
	if creds.GCS.Configured() {
		client, err := buildGCSClient(creds)
		if err != nil {
			logger.Warnf("gcs backend unavailable: %v", err)
		} else {
			router.Register("gs", vfs.NewGCSProvider(client))
		}
	}
	if creds.Azure.Configured() {
		client, err := buildAzureClient(creds)
		if err != nil {
			logger.Warnf("azure backend unavailable: %v", err)
		} else {
			azp := vfs.NewAzureProvider(client)
			router.Register("az", azp)
			router.Register("azure", azp)
		}
	}

	checker := vfs.NewHealthChecker(router)
	if vfs.IsRemotePath(project.TemplatePath) {
		checker.AddProbe(vfs.Scheme(project.TemplatePath), project.TemplatePath)
	}

	var provider vfs.FileProvider = router
	if project.FileCache.Enabled {
		provider = vfs.NewCachingProvider(router,
			time.Duration(project.FileCache.TTLSeconds)*time.Second,
			project.FileCache.MaxSizeBytes,
			project.FileCache.MaxTotalBytes)
	}
	return provider, checker, nil
}

// loadEndpoints preprocesses and decodes every endpoint YAML under the
// template path. The MCP auth config comes from the first auth-enabled
// endpoint with an MCP surface.
func loadEndpoints(ctx context.Context, project *config.ProjectConfig, files vfs.FileProvider) (*endpoints.Repository, *config.AuthConfig, error) {
	pre, err := config.NewExtendedPreprocessor(project.EnvWhitelist)
	if err != nil {
		return nil, nil, err
	}

	paths, err := files.ListFiles(ctx, project.TemplatePath, project.EndpointGlob)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list endpoint configs: %w", err)
	}

	repo := endpoints.New()
	var mcpAuth *config.AuthConfig
	for _, path := range paths {
		tree, err := pre.Process(path)
		if err != nil {
			return nil, nil, err
		}
		ep, err := config.DecodeEndpoint(tree)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if ep.Auth.Enabled && ep.Auth.Type == "oidc" && ep.Auth.OIDC != nil {
			oidc.ApplyPreset(ep.Auth.OIDC)
		}
		repo.Add(ep)
		if mcpAuth == nil && ep.Auth.Enabled && ep.MCPName() != "" {
			cfg := ep.Auth
			mcpAuth = &cfg
		}
	}
	return repo, mcpAuth, nil
}

func templateReader(project *config.ProjectConfig, files vfs.FileProvider) server.TemplateReader {
	validator := vfs.NewPathValidator()
	validator.AllowedPrefixes = project.AllowedPathPrefixes
	return func(ctx context.Context, ep *config.EndpointConfig) (string, error) {
		path, err := validator.Validate(ep.TemplateSource, project.TemplatePath)
		if err != nil {
			return "", err
		}
		data, err := files.ReadFile(ctx, path)
		return string(data), err
	}
}

func cacheTemplateReader(project *config.ProjectConfig, files vfs.FileProvider) func(context.Context, *config.EndpointConfig) (string, error) {
	base := templateReader(project, files)
	return func(ctx context.Context, ep *config.EndpointConfig) (string, error) {
		if ep.Cache.TemplateSource == "" {
			return base(ctx, ep)
		}
		clone := *ep
		clone.TemplateSource = ep.Cache.TemplateSource
		return base(ctx, &clone)
	}
}

// buildOIDCValidator wires discovery and JWKS over the shared HTTP client.
func buildOIDCValidator(project *config.ProjectConfig) (*oidc.TokenValidator, error) {
	builder := networking.NewHttpClientBuilder()
	if project.Server.InsecureAllowHTTP {
		builder = builder.WithInsecureTLS(true).WithPrivateIPs(true)
	}
	httpClient, err := builder.Build()
	if err != nil {
		return nil, err
	}
	discovery, err := oidc.NewDiscoveryClient(httpClient, 0)
	if err != nil {
		return nil, err
	}
	jwks, err := oidc.NewJWKSManager(httpClient, 0)
	if err != nil {
		return nil, err
	}
	return oidc.NewTokenValidator(discovery, jwks), nil
}

// sessionCleanupLoop evicts idle MCP sessions in the background.
func sessionCleanupLoop(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.Sessions().CleanupExpired()
		}
	}
}
