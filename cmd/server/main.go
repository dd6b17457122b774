package main

import (
	"net/http"

	"convoserve/internal/app"
	"convoserve/internal/auth"
	"convoserve/internal/config"
	"convoserve/internal/handlers"
	"convoserve/internal/llm"
	"convoserve/internal/logger"
	"convoserve/internal/orchestrator"
	"convoserve/internal/prompt"
	"convoserve/internal/store/postgres"
	"convoserve/internal/token"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	st, err := postgres.NewPostgresStore(appConfig.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize store")
	}
	defer st.Close()

	estimator, err := newEstimator(appConfig.LLM)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize token estimator")
	}

	registry := llm.NewRegistry(appConfig.LLM)
	builder := prompt.NewBuilder(estimator)
	orch := orchestrator.New(st, appConfig.Models, registry, builder, orchestrator.Options{
		RetryAttempts:   appConfig.LLM.RetryAttempts,
		RetryBackoff:    appConfig.LLM.RetryBackoff,
		ProviderTimeout: appConfig.LLM.ProviderTimeout,
	})

	appCfg := app.NewConfig(st, appConfig)
	authService := auth.NewService(st, appConfig.Auth)
	chatHandlers := handlers.NewChatHandlers(appCfg, orch)

	mux := http.NewServeMux()

	corsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusOK)
	}

	// Public routes
	mux.HandleFunc("POST /api/login", enableCORS(authService.LoginHandler))
	mux.HandleFunc("OPTIONS /api/login", corsHandler)
	mux.HandleFunc("POST /api/register", enableCORS(authService.RegisterHandler))
	mux.HandleFunc("OPTIONS /api/register", corsHandler)
	mux.HandleFunc("GET /api/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)

	// Protected routes
	mux.HandleFunc("POST /api/chat", enableCORS(authService.Middleware(chatHandlers.ChatHandler)))
	mux.HandleFunc("OPTIONS /api/chat", corsHandler)
	mux.HandleFunc("GET /api/models", enableCORS(authService.Middleware(chatHandlers.GetModelsHandler)))
	mux.HandleFunc("OPTIONS /api/models", corsHandler)
	mux.HandleFunc("GET /api/conversations", enableCORS(authService.Middleware(chatHandlers.GetConversationsHandler)))
	mux.HandleFunc("OPTIONS /api/conversations", corsHandler)
	mux.HandleFunc("GET /api/system-prompts", enableCORS(authService.Middleware(chatHandlers.ListSystemPromptsHandler)))
	mux.HandleFunc("POST /api/system-prompts", enableCORS(authService.Middleware(chatHandlers.CreateSystemPromptHandler)))
	mux.HandleFunc("OPTIONS /api/system-prompts", corsHandler)

	// Protected parameterized routes
	mux.HandleFunc("GET /api/conversations/{id}/messages", enableCORS(authService.Middleware(chatHandlers.GetConversationMessagesHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages", corsHandler)
	mux.HandleFunc("GET /api/conversations/{id}/settings", enableCORS(authService.Middleware(chatHandlers.GetSettingsHandler)))
	mux.HandleFunc("PUT /api/conversations/{id}/settings", enableCORS(authService.Middleware(chatHandlers.UpdateSettingsHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/settings", corsHandler)
	mux.HandleFunc("GET /api/conversations/{id}/usage", enableCORS(authService.Middleware(chatHandlers.GetUsageHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/usage", corsHandler)
	mux.HandleFunc("DELETE /api/conversations/{id}", enableCORS(authService.Middleware(chatHandlers.DeleteConversationHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}", corsHandler)

	port := appConfig.Server.Port
	logger.Log.WithField("port", port).Info("Server starting")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Log.WithError(err).Fatal("Server failed to start")
	}
}

// newEstimator picks the configured token counting implementation.
func newEstimator(cfg config.LLMConfig) (token.Estimator, error) {
	switch cfg.Estimator {
	case "tiktoken":
		return token.NewTiktokenEstimator("cl100k_base")
	default:
		return token.NewHeuristicEstimator(), nil
	}
}
