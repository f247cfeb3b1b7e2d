package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/skill-loop-be/internal/api/handlers"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/isdelr/skill-loop-be/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles the domain services the API exposes.
type Services struct {
	Auth          services.AuthServiceProvider
	Users         services.UserServiceProvider
	Organizations services.OrganizationServiceProvider
	Skills        services.SkillServiceProvider
	JobRoles      services.JobRoleServiceProvider
	Matrix        services.SkillMatrixServiceProvider
	Trainings     services.TrainingServiceProvider
	Proofs        services.ProofServiceProvider
	Assessments   services.AssessmentServiceProvider
	Journeys      services.JourneyServiceProvider
	Notifications services.NotificationServiceProvider
	Events        services.EventServiceProvider
	Dashboard     services.DashboardServiceProvider
}

// Options carries the non-service dependencies of the router.
type Options struct {
	Tokens         *auth.TokenIssuer
	Hub            *websocket.Hub
	Health         handlers.HealthReporter
	Overdue        handlers.OverdueRunner
	Clock          clockwork.Clock
	AllowedOrigins []string
	CronSecret     string
	SecureCookies  bool
	MaxUploadMB    int64
}

// NewRouter creates and configures a new Chi router.
func NewRouter(svc Services, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users, opts.Tokens.TTL(), opts.SecureCookies, opts.Clock)
	userHandler := handlers.NewUserHandler(svc.Users)
	orgHandler := handlers.NewOrganizationHandler(svc.Organizations)
	skillHandler := handlers.NewSkillHandler(svc.Skills)
	jobRoleHandler := handlers.NewJobRoleHandler(svc.JobRoles)
	matrixHandler := handlers.NewMatrixHandler(svc.Matrix, svc.Users, opts.Clock)
	trainingHandler := handlers.NewTrainingHandler(svc.Trainings, svc.Users, opts.Clock)
	proofHandler := handlers.NewProofHandler(svc.Proofs, svc.Trainings, opts.MaxUploadMB)
	assessmentHandler := handlers.NewAssessmentHandler(svc.Assessments)
	journeyHandler := handlers.NewJourneyHandler(svc.Journeys, svc.Users)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	eventHandler := handlers.NewEventHandler(svc.Events)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard, opts.Health)
	cronHandler := handlers.NewCronHandler(opts.Overdue, opts.CronSecret)
	wsHandler := handlers.NewWebSocketHandler(opts.Hub, opts.AllowedOrigins)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", Health)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/otp/request", authHandler.RequestOTP)
		r.Post("/auth/otp/verify", authHandler.VerifyOTP)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/organizations", orgHandler.Create)
		r.Post("/cron/overdue", cronHandler.Overdue)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(opts.Tokens.Middleware())
			r.Use(auth.PrefixGuard(auth.DefaultRules))

			r.Get("/ws", wsHandler.Serve)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", authHandler.GetMe)
				r.Get("/organization", orgHandler.Current)
				r.Get("/matrix", matrixHandler.GetMatrix)
				r.Get("/matrix/gaps", matrixHandler.GapReport)
				r.Get("/matrix.csv", matrixHandler.MatrixCSV)
				r.Get("/assignments", trainingHandler.MyAssignments)
				r.Post("/assignments/{id}/start", trainingHandler.StartAssignment)
				r.Post("/assignments/{id}/proofs", proofHandler.Upload)
				r.Get("/assignments/{id}/proofs", proofHandler.ListForAssignment)
				r.Get("/calendar.ics", trainingHandler.MyCalendar)
				r.Get("/attempts", assessmentHandler.MyAttempts)
				r.Get("/journey", journeyHandler.Progress)
				r.Post("/journey", journeyHandler.Start)
				r.Post("/journey/phases/{phaseId}/complete", journeyHandler.CompletePhase)
				r.Get("/notifications", notificationHandler.List)
				r.Post("/notifications/read", notificationHandler.MarkAllRead)
				r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
			})

			// Catalog reads open to every role
			r.Get("/categories", skillHandler.ListCategories)
			r.Get("/skills", skillHandler.ListSkills)
			r.Get("/skills/{id}", skillHandler.GetSkill)
			r.Get("/job-roles", jobRoleHandler.List)
			r.Get("/job-roles/{id}", jobRoleHandler.Get)
			r.Get("/trainings", trainingHandler.List)
			r.Get("/trainings/{id}", trainingHandler.Get)
			r.Get("/trainings/{id}/calendar.ics", trainingHandler.TrainingCalendar)
			r.Get("/journeys", journeyHandler.ListJourneys)
			r.Get("/journeys/{id}", journeyHandler.GetJourney)

			r.Route("/assessments", func(r chi.Router) {
				r.Get("/", assessmentHandler.ListPublished)
				r.Get("/{id}", assessmentHandler.GetForCandidate)
				r.Post("/{id}/attempts", assessmentHandler.StartAttempt)
			})
			r.Route("/attempts/{id}", func(r chi.Router) {
				r.Get("/", assessmentHandler.GetAttempt)
				r.Post("/submit", assessmentHandler.SubmitAttempt)
			})
			r.Route("/proofs/{id}", func(r chi.Router) {
				r.Get("/download", proofHandler.DownloadURL)
				r.Get("/file", proofHandler.File)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/dashboard", dashboardHandler.Stats)
				r.Get("/system/health", dashboardHandler.Health)
				r.Get("/events", eventHandler.GetRecent)
				r.Get("/config", orgHandler.GetConfig)
				r.Put("/config", orgHandler.UpdateConfig)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Get("/{id}", userHandler.Get)
					r.Put("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Delete)
				})
				r.Route("/categories", func(r chi.Router) {
					r.Post("/", skillHandler.CreateCategory)
					r.Put("/{id}", skillHandler.UpdateCategory)
					r.Delete("/{id}", skillHandler.DeleteCategory)
				})
				r.Route("/skills", func(r chi.Router) {
					r.Post("/", skillHandler.CreateSkill)
					r.Put("/{id}", skillHandler.UpdateSkill)
					r.Delete("/{id}", skillHandler.DeleteSkill)
				})
				r.Route("/job-roles", func(r chi.Router) {
					r.Post("/", jobRoleHandler.Create)
					r.Put("/{id}", jobRoleHandler.Update)
					r.Delete("/{id}", jobRoleHandler.Delete)
					r.Put("/{id}/competencies", jobRoleHandler.ReplaceCompetencies)
				})
				r.Put("/journeys/phases/{phaseId}", journeyHandler.UpdatePhase)
			})

			r.Route("/trainer", func(r chi.Router) {
				r.Route("/assessments", func(r chi.Router) {
					r.Get("/", assessmentHandler.ListAll)
					r.Post("/", assessmentHandler.Create)
					r.Get("/{id}", assessmentHandler.Get)
					r.Put("/{id}", assessmentHandler.Update)
					r.Delete("/{id}", assessmentHandler.Delete)
					r.Post("/{id}/publish", assessmentHandler.Publish)
					r.Post("/{id}/questions", assessmentHandler.AddQuestion)
					r.Post("/{id}/questions/draft", assessmentHandler.Draft)
				})
				r.Put("/questions/{questionId}", assessmentHandler.UpdateQuestion)
				r.Delete("/questions/{questionId}", assessmentHandler.DeleteQuestion)
				r.Get("/grading", assessmentHandler.PendingGrading)
				r.Post("/attempts/{id}/answers/{questionId}/grade", assessmentHandler.GradeAnswer)

				r.Route("/trainings", func(r chi.Router) {
					r.Post("/", trainingHandler.Create)
					r.Put("/{id}", trainingHandler.Update)
					r.Delete("/{id}", trainingHandler.Delete)
					r.Post("/{id}/assign", trainingHandler.Assign)
				})
				r.Get("/assignments", trainingHandler.ListAssignments)
				r.Get("/assignments/{id}/proofs", proofHandler.ListForAssignment)
				r.Get("/proofs", proofHandler.List)
				r.Post("/proofs/{id}/review", proofHandler.Review)
			})

			r.Route("/manager", func(r chi.Router) {
				r.Get("/team", userHandler.Team)
				r.Get("/tna", matrixHandler.TrainingNeeds)
				r.Get("/tna.csv", matrixHandler.TrainingNeedsCSV)
				r.Get("/journeys", journeyHandler.ListEmployees)
				r.Route("/employees/{id}", func(r chi.Router) {
					r.Get("/matrix", matrixHandler.GetMatrix)
					r.Get("/matrix/gaps", matrixHandler.GapReport)
					r.Get("/matrix.csv", matrixHandler.MatrixCSV)
					r.Post("/matrix/assess", matrixHandler.Assess)
					r.Post("/matrix/sync", matrixHandler.SyncFromRole)
					r.Post("/assign-from-gaps", trainingHandler.AssignFromGaps)
					r.Get("/journey", journeyHandler.Progress)
					r.Post("/journey", journeyHandler.Start)
					r.Post("/journey/phases/{phaseId}/complete", journeyHandler.CompletePhase)
				})
			})
		})
	})

	return r
}

// Health is a liveness probe for load balancers.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
