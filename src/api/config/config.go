package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	MySQLDSN  string
	RedisURL  string
	RPCURL    string
	Port      string
	JWTSecret string

	// Curation ledger economics.
	TreasuryAddr  string
	CoinType      string
	FlagPriceKRN  int64
	FlagThreshold int

	// Optional collaborators.
	DiscordToken      string
	DiscordModChannel string
	LLMAPIKey         string
	LLMModel          string
	MarketURL         string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func optenv(key string) string { return os.Getenv(key) }

// getenvInt refuses to start on a garbled numeric env: a silently zeroed
// price would make every flag toggle fail payment verification.
func getenvInt(key, def string) int64 {
	v := getenv(key, def)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return n
}

func Load() Config {
	flagPrice := getenvInt("FLAG_PRICE", "3")
	flagThreshold := int(getenvInt("FLAG_THRESHOLD", "5"))
	return Config{
		MySQLDSN:          getenv("MYSQL_DSN", "gripeboard:gripeboard@tcp(127.0.0.1:3306)/gripeboard?parseTime=true"),
		RedisURL:          getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		RPCURL:            getenv("RPC_URL", "https://fullnode.mainnet.sui.io:443"),
		Port:              getenv("PORT", "8080"),
		JWTSecret:         getenv("JWT_SECRET", ""),
		TreasuryAddr:      getenv("TREASURY_ADDR", ""),
		CoinType:          getenv("KRN_COIN_TYPE", ""),
		FlagPriceKRN:      flagPrice,
		FlagThreshold:     flagThreshold,
		DiscordToken:      optenv("DISCORD_TOKEN"),
		DiscordModChannel: optenv("DISCORD_MOD_CHANNEL"),
		LLMAPIKey:         optenv("LLM_API_KEY"),
		LLMModel:          optenv("LLM_MODEL"),
		MarketURL:         optenv("MARKET_URL"),
	}
}
