package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/akademia-dev/college-api/api/swagger"
	"github.com/akademia-dev/college-api/internal/handler"
	"github.com/akademia-dev/college-api/internal/middleware"
	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/internal/repository"
	"github.com/akademia-dev/college-api/internal/service"
	"github.com/akademia-dev/college-api/pkg/cache"
	"github.com/akademia-dev/college-api/pkg/config"
	"github.com/akademia-dev/college-api/pkg/database"
	"github.com/akademia-dev/college-api/pkg/logger"
	corsmiddleware "github.com/akademia-dev/college-api/pkg/middleware/cors"
	reqidmiddleware "github.com/akademia-dev/college-api/pkg/middleware/requestid"
)

// @title College API
// @version 1.0.0
// @description Course, student and enrollment management with hypermedia responses
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	var courseCache *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		courseCache = repository.NewCacheRepository(redisClient)
		defer courseCache.Close()
	}

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)

	var courseSvc *service.CourseService
	if courseCache != nil {
		courseSvc = service.NewCourseService(courseRepo, teacherRepo, courseCache, cfg.Cache.TTL, metricsSvc, validate, logr)
	} else {
		courseSvc = service.NewCourseService(courseRepo, teacherRepo, nil, cfg.Cache.TTL, metricsSvc, validate, logr)
	}
	var enrollmentSvc *service.EnrollmentService
	if courseCache != nil {
		enrollmentSvc = service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, courseCache, validate, logr)
	} else {
		enrollmentSvc = service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, nil, validate, logr)
	}
	reportSvc := service.NewReportService(enrollmentRepo, studentRepo, courseRepo, nil, nil, metricsSvc, logr)

	resolver := handler.NewLinkResolver(cfg.BaseURL, cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, resolver)
	teacherHandler := handler.NewTeacherHandler(teacherSvc, resolver)
	courseHandler := handler.NewCourseHandler(courseSvc, enrollmentSvc, resolver)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, resolver)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	students := protected.Group("/students")
	{
		students.GET("", staff, studentHandler.List)
		students.GET("/:id", middleware.RBAC("ADMIN", "TEACHER", "SELF"), studentHandler.Get)
		students.POST("", staff, studentHandler.Create)
		students.PATCH("/:id", staff, studentHandler.Update)
		students.DELETE("/:id", admin, studentHandler.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", teacherHandler.List)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.POST("", admin, teacherHandler.Create)
		teachers.PATCH("/:id", admin, teacherHandler.Update)
		teachers.DELETE("/:id", admin, teacherHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/students", courseHandler.Students)
		courses.POST("", staff, courseHandler.Create)
		courses.PATCH("/:id", staff, courseHandler.Update)
		courses.PUT("/:id/capacity", staff, courseHandler.SetCapacity)
		courses.PUT("/:id/block", staff, courseHandler.Block)
		courses.PUT("/:id/unblock", staff, courseHandler.Unblock)
		courses.DELETE("/:id", admin, courseHandler.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", staff, enrollmentHandler.Create)
		enrollments.PUT("/:id", staff, enrollmentHandler.Replace)
		enrollments.PATCH("/:id", staff, enrollmentHandler.Update)
		enrollments.PUT("/:id/grade", staff, enrollmentHandler.Grade)
		enrollments.DELETE("/:id", staff, enrollmentHandler.Delete)
	}

	if cfg.Reports.Enabled {
		reports := protected.Group("/reports")
		reports.Use(staff)
		{
			reports.GET("/courses/:id/roster", reportHandler.CourseRoster)
			reports.GET("/students/:id/transcript", reportHandler.StudentTranscript)
		}
	}

	users := protected.Group("/users")
	users.Use(admin)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
