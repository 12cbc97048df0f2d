package rdx

import (
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"pixelfeed/globals"
)

var Conn *redis.Client

func Init() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	Conn = redis.NewClient(&redis.Options{Addr: addr})
	if err := Conn.Ping(globals.Ctx).Err(); err != nil {
		log.Printf("Redis unavailable at %s: %v", addr, err)
	}
}

func RdxSet(key, value string) error {
	if Conn == nil {
		return nil
	}
	return Conn.Set(globals.Ctx, key, value, 0).Err()
}

func RdxGet(key string) (string, error) {
	if Conn == nil {
		return "", redis.Nil
	}
	return Conn.Get(globals.Ctx, key).Result()
}

func RdxHset(hash, field, value string) error {
	if Conn == nil {
		return nil
	}
	return Conn.HSet(globals.Ctx, hash, field, value).Err()
}

func RdxHdel(hash, field string) error {
	if Conn == nil {
		return nil
	}
	return Conn.HDel(globals.Ctx, hash, field).Err()
}
