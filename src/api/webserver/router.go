package webserver

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/krn-labs/gripeboard/src/api/chain"
	"github.com/krn-labs/gripeboard/src/api/config"
	"github.com/krn-labs/gripeboard/src/api/discord"
	"github.com/krn-labs/gripeboard/src/api/ledger"
	"github.com/krn-labs/gripeboard/src/api/types"
)

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://board.krn.zone"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	oracle, err := chain.NewClient(chain.Config{RPCURL: cfg.RPCURL})
	if err != nil {
		log.Fatalf("chain: %v", err)
	}

	svc := ledger.New(db, oracle, ledger.Config{
		TreasuryAddr:  cfg.TreasuryAddr,
		CoinType:      cfg.CoinType,
		FlagPriceKRN:  cfg.FlagPriceKRN,
		FlagThreshold: cfg.FlagThreshold,
	})

	if cfg.DiscordToken != "" && cfg.DiscordModChannel != "" {
		notifier, err := discord.NewNotifier(cfg.DiscordToken, cfg.DiscordModChannel)
		if err != nil {
			log.Printf("discord: %v", err)
		} else {
			svc.OnFlagged(func(p types.Post) {
				go func() {
					if err := notifier.PostFlagged(p); err != nil {
						log.Printf("discord: flag alert for post %d: %v", p.ID, err)
					}
				}()
			})
		}
	}

	secret := []byte(cfg.JWTSecret)
	authH := NewAuth(rdb, secret)
	gripeH := NewGripes(db, svc)
	togH := NewToggles(svc, rdb)
	chatH := NewChat(cfg)
	marketH := NewMarket(cfg.MarketURL)

	limiter := NewRateLimiter(30, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)

		v1.GET("/gripes", OptionalAddr(secret), gripeH.List)
		v1.POST("/gripes", OptionalAddr(secret), RateLimitMiddleware(limiter), gripeH.Create)
		v1.GET("/market", marketH.Ticker)

		secured := v1.Group("")
		secured.Use(JWTMiddleware(secret), RateLimitMiddleware(limiter))
		secured.POST("/gripes/:id/star", togH.Star)
		secured.POST("/gripes/:id/star/evict", togH.Evict)
		secured.POST("/gripes/:id/flag", togH.Flag)
		secured.POST("/chat", chatH.Relay)
	}
}
