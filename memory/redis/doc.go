// Package redis persists session history and context values in Redis.
package redis
