package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"course-planner-sync/internal/middleware"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/response"
)

type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Preferences *service.PreferenceService
	Courses     *service.CourseService
	Schedules   *service.ScheduleService
}

type CORS struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// NewRouter mounts the planner API under /api.
func NewRouter(svc Services, jwtSecret string, cors CORS, log *zap.Logger) *mux.Router {
	authHandler := NewAuthHandler(svc.Auth, log)
	userHandler := NewUserHandler(svc.Users, svc.Preferences, svc.Schedules, log)
	scheduleHandler := NewScheduleHandler(svc.Schedules, log)
	courseHandler := NewCourseHandler(svc.Courses, log)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(cors.AllowedOrigins, cors.AllowedMethods, cors.AllowedHeaders))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", healthHandler).Methods("GET")
	api.HandleFunc("/users", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/courses", courseHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/courses/{id}", courseHandler.Get).Methods("GET", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	users := protected.PathPrefix("/users/{id}").Subrouter()
	users.Use(middleware.RequireSelf)
	users.HandleFunc("", userHandler.Get).Methods("GET", "OPTIONS")
	users.HandleFunc("", userHandler.Update).Methods("PUT", "OPTIONS")
	users.HandleFunc("/preferences", userHandler.GetPreferences).Methods("GET", "OPTIONS")
	users.HandleFunc("/preferences", userHandler.PutPreferences).Methods("PUT", "OPTIONS")
	users.HandleFunc("/schedules", userHandler.ListSchedules).Methods("GET", "OPTIONS")

	protected.HandleFunc("/schedule/generate", scheduleHandler.Generate).Methods("POST", "OPTIONS")
	protected.HandleFunc("/schedule/{id}", scheduleHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/schedule/{id}/weekly", scheduleHandler.Weekly).Methods("GET", "OPTIONS")
	protected.HandleFunc("/schedule/{id}", scheduleHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/schedule/{id}", scheduleHandler.Delete).Methods("DELETE", "OPTIONS")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{
		"status":  "healthy",
		"service": "course-planner",
	})
}
