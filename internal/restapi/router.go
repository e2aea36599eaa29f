package restapi

import (
	"net/http/pprof"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router instance.
func SetupRouter(handler *Handler, middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))
	router.Use(middleware...)

	api := router.Group("/api")
	{
		crypto := api.Group("/crypto")
		{
			crypto.POST("/lookup", handler.CryptoLookupHandler)
			crypto.GET("/history", handler.CryptoHistoryHandler)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/lookup", handler.WalletLookupHandler)
			wallet.GET("/history", handler.WalletHistoryHandler)
		}

		uniswap := api.Group("/uniswap")
		{
			uniswap.POST("/check-tokens", handler.CheckTokensHandler)
			uniswap.POST("/pools", handler.PoolsHandler)
		}

		buddies := api.Group("/buddies")
		{
			buddies.GET("", handler.ListBuddiesHandler)
			buddies.POST("", handler.AddBuddyHandler)
			buddies.DELETE("/:id", handler.DeleteBuddyHandler)
		}

		api.POST("/portfolio/chat", handler.PortfolioChatHandler)

		nft := api.Group("/nft")
		{
			nft.POST("/metadata", handler.SaveMetadataHandler)
			nft.GET("/metadata/:id", handler.GetMetadataHandler)
		}

		api.POST("/deploy", handler.DeployHandler)
	}

	router.GET("/health", handler.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := router.Group("/debug/pprof")
	{
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		debug.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		debug.GET("/block", gin.WrapH(pprof.Handler("block")))
	}

	return router
}
