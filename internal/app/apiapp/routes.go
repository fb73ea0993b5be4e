package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	analysissvc "github.com/kmish9685/Persona-AI-sub000/internal/services/analysis"
	authsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/auth"
	billingsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/billing"
	chatsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/chat"
	quotasvc "github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	"github.com/kmish9685/Persona-AI-sub000/internal/transport/http/handlers"
)

type Dependencies struct {
	ChatService     *chatsvc.Service
	AnalysisService *analysissvc.Service
	QuotaService    *quotasvc.Service
	BillingService  *billingsvc.Service
	JWTManager      *authsvc.JWTManager
	Logger          *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	chatHandler := handlers.NewChatHandler(deps.ChatService)
	analysisHandler := handlers.NewAnalysisHandler(deps.AnalysisService)
	quotaHandler := handlers.NewQuotaHandler(deps.QuotaService)
	billingHandler := handlers.NewBillingHandler(deps.BillingService)
	identityMW := IdentityMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/v1", func(r chi.Router) {
		r.With(identityMW).Post("/chat", chatHandler.Handle)
		r.With(identityMW).Post("/analysis", analysisHandler.Create)
		r.With(identityMW).Get("/analysis", analysisHandler.List)
		r.With(identityMW).Post("/analysis/{id}/checkpoints", analysisHandler.AddCheckpoint)
		r.With(identityMW).Get("/analysis/{id}/checkpoints", analysisHandler.ListCheckpoints)
		r.With(identityMW).Get("/quota", quotaHandler.Handle)

		// Provider-called, authenticated by (provider, event_id) idempotency
		// rather than a session.
		r.Post("/billing/webhook", billingHandler.Webhook)
	})
}
