package main

import (
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/middleware"
	"storefront/internal/rates"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.SizeVariant{},
		&model.Cart{},
		&model.CartLine{},
		&model.Address{},
		&model.DiscountCode{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.DomainEvent{},
	); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartLineRepo := infraRepo.NewCartLineGormRepository(gormDB)
	discountRepo := infraRepo.NewDiscountGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	eventRepo := infraRepo.NewEventGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//JWT issuer
	issuer := &jwtIssuer{
		secret:    []byte(cfg.JWTSecret),
		accessTTL: 15 * time.Minute,
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, issuer, 12)
	cartUC := usecase.NewCartUsecase(cartRepo, cartLineRepo, productRepo, variantRepo)
	checkoutUC := usecase.NewCheckoutUsecase(
		txManager,
		cartRepo,
		cartLineRepo,
		productRepo,
		variantRepo,
		discountRepo,
		orderRepo,
		rates.NewTableCalculator(),
		eventRepo,
		log,
	)
	orderUC := usecase.NewOrderUsecase(txManager, orderRepo, orderItemRepo, paymentRepo, addressRepo, eventRepo)
	addressUC := usecase.NewAddressUsecase(addressRepo)

	//Handler生成
	limiter := middleware.NewRateLimiter(cfg.CheckoutRatePerSecond, cfg.CheckoutRateBurst)

	authH := handler.NewAuthHandler(authUC)
	cartH := handler.NewCartHandler(cartUC)
	checkoutH := handler.NewCheckoutHandler(checkoutUC, limiter)
	orderH := handler.NewOrderHandler(orderUC)
	addressH := handler.NewAddressHandler(addressUC)

	//Server起動
	e := server.New(cfg, authH, cartH, checkoutH, orderH, addressH)

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("starting api")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
