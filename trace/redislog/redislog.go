// Package redislog implements an [io.Writer] pushing the lines written to it
// onto a Redis list, so that the text and IR traces of worker processes can
// be collected remotely.
package redislog

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the list the lines are pushed to if no key is configured.
const DefaultKey = "hetrace"

// Pusher is the subset of the Redis client used by [Writer].
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Writer buffers the bytes written to it and pushes every complete line,
// without its trailing newline, onto a Redis list.
// Writer is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	ctx     context.Context
	client  Pusher
	key     string
	buf     bytes.Buffer
	closeFn func() error
}

// New returns a [Writer] pushing onto the list key with client.
func New(ctx context.Context, client Pusher, key string) *Writer {
	if key == "" {
		key = DefaultKey
	}
	return &Writer{ctx: ctx, client: client, key: key}
}

// Dial connects to the Redis server described by opts and returns a
// [Writer] owning the connection.
func Dial(ctx context.Context, opts *redis.Options, key string) (w *Writer, err error) {

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	w = New(ctx, client, key)
	w.closeFn = client.Close

	return
}

// Key returns the Redis list the lines are pushed to.
func (w *Writer) Key() string {
	return w.key
}

// Write buffers p and pushes the complete lines it holds. Lines that
// could not be pushed stay buffered and are retried by the next Write or
// Flush; p is accepted even when the push fails.
func (w *Writer) Write(p []byte) (n int, err error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	n, _ = w.buf.Write(p)

	var lines []interface{}
	var size int
	for b := w.buf.Bytes(); ; {
		i := bytes.IndexByte(b[size:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(b[size:size+i]))
		size += i + 1
	}

	if err = w.push(lines); err != nil {
		return
	}

	w.buf.Next(size)

	return
}

// Flush pushes the pending incomplete line, if any.
func (w *Writer) Flush() (err error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return
	}

	if err = w.push([]interface{}{w.buf.String()}); err != nil {
		return
	}

	w.buf.Reset()

	return
}

// Close flushes the writer and closes the connection it owns.
func (w *Writer) Close() (err error) {

	err = w.Flush()

	if w.closeFn != nil {
		if cerr := w.closeFn(); err == nil {
			err = cerr
		}
	}

	return
}

func (w *Writer) push(lines []interface{}) (err error) {

	if len(lines) == 0 {
		return
	}

	if err = w.client.RPush(w.ctx, w.key, lines...).Err(); err != nil {
		return fmt.Errorf("redislog: push to %s: %w", w.key, err)
	}

	return
}
