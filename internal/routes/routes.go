package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lending-system/internal/controllers"
	"lending-system/internal/repositories"
	"lending-system/internal/services"
	"lending-system/pkg/config"
	"lending-system/pkg/middleware"
	"lending-system/pkg/service"
)

type Loggers struct {
	Main   *zap.Logger
	Auth   *zap.Logger
	Borrow *zap.Logger
}

func InitRouter(e *echo.Echo, dbConn *pgxpool.Pool, redisClient *redis.Client, jwtSvc service.JWTService, loggers *Loggers, cfg *config.Config) {
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)

	txManager := repositories.NewTxManager(dbConn)

	userRepo := repositories.NewUserRepository(dbConn, loggers.Main)
	classRepo := repositories.NewClassRepository(dbConn)
	equipmentRepo := repositories.NewEquipmentRepository(dbConn, loggers.Main)
	borrowRepo := repositories.NewBorrowRepository(dbConn, loggers.Borrow)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	clock := services.NewSystemClock()
	availabilityService := services.NewAvailabilityService(borrowRepo, equipmentRepo, loggers.Borrow)
	equipmentService := services.NewEquipmentService(equipmentRepo, loggers.Main)
	borrowService := services.NewBorrowService(
		txManager, borrowRepo, equipmentRepo, classRepo, userRepo,
		availabilityService, clock, cfg.Lending, loggers.Borrow,
	)
	groupService := services.NewBorrowGroupService(
		txManager, borrowRepo, equipmentRepo, classRepo, clock, loggers.Borrow,
	)
	authService := services.NewAuthService(userRepo, cacheRepo, jwtSvc, loggers.Auth)

	authController := controllers.NewAuthController(authService, loggers.Auth)
	borrowController := controllers.NewBorrowController(borrowService, groupService, loggers.Borrow)
	equipmentController := controllers.NewEquipmentController(equipmentService, availabilityService, loggers.Main)

	secureGroup := api.Group("", authMW.Auth)

	runAuthRouter(api, secureGroup, authController)
	runBorrowRouter(secureGroup, borrowController)
	runEquipmentRouter(secureGroup, equipmentController)

	loggers.Main.Info("routes registered")
}
