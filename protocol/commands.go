package protocol

import (
	"fmt"

	"github.com/Krishna8167/tempuscached/cache"
)

// storeCommand implements set/add/replace: memcached's three admission
// variants, all backed by cache.Storage's Put/PutIfAbsent/Set trio.
// Grounded on original_source/src/execute/Set.cpp's
// Execute(storage, args, &out) shape.
type storeCommand struct {
	verb string
	key  string
}

func (c *storeCommand) Execute(storage cache.Storage, argument string) string {
	var stored bool
	switch c.verb {
	case "set":
		stored = storage.Put(c.key, argument)
	case "add":
		stored = storage.PutIfAbsent(c.key, argument)
	case "replace":
		stored = storage.Set(c.key, argument)
	}
	if stored {
		return "STORED"
	}
	return "NOT_STORED"
}

type getCommand struct {
	key string
}

func (c *getCommand) Execute(storage cache.Storage, _ string) string {
	value, ok := storage.Get(c.key)
	if !ok {
		return "END"
	}
	return fmt.Sprintf("VALUE %s 0 %d\r\n%s\r\nEND", c.key, len(value), value)
}

type deleteCommand struct {
	key string
}

func (c *deleteCommand) Execute(storage cache.Storage, _ string) string {
	if storage.Delete(c.key) {
		return "DELETED"
	}
	return "NOT_FOUND"
}
