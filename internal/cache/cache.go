// Package cache provee el storage efímero de los intentos de autenticación
// entre la request phase y la callback phase.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
package cache

import "time"

// Cache define las operaciones mínimas que necesita el attempt store.
type Cache interface {
	// Get obtiene un valor. El segundo retorno es false si no existe o expiró.
	Get(key string) ([]byte, bool)

	// Set guarda un valor con TTL. Si ttl es 0 se usa el default del backend.
	Set(key string, value []byte, ttl time.Duration)

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(key string)
}

// Config configuración para crear un cache.
type Config struct {
	Kind       string // "memory" | "redis"
	RedisAddr  string
	RedisDB    int
	DefaultTTL time.Duration
}
