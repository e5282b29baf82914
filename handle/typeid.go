package handle

import (
	"reflect"
	"sync"
)

// TypeID tags a stored value with the Go type it was inserted as.
// Zero means untyped.
type TypeID uint32

var typeRegistry struct {
	mu    sync.RWMutex
	ids   map[reflect.Type]TypeID
	names []string
}

// TypeOf returns the process-wide TypeID for T, assigning one on first use.
func TypeOf[T any]() TypeID {
	return typeIDFor(reflect.TypeFor[T]())
}

func typeIDFor(rt reflect.Type) TypeID {
	typeRegistry.mu.RLock()
	id, ok := typeRegistry.ids[rt]
	typeRegistry.mu.RUnlock()
	if ok {
		return id
	}

	typeRegistry.mu.Lock()
	defer typeRegistry.mu.Unlock()
	if id, ok := typeRegistry.ids[rt]; ok {
		return id
	}
	if typeRegistry.ids == nil {
		typeRegistry.ids = make(map[reflect.Type]TypeID)
		typeRegistry.names = []string{"untyped"}
	}
	id = TypeID(len(typeRegistry.names))
	typeRegistry.ids[rt] = id
	typeRegistry.names = append(typeRegistry.names, rt.String())
	return id
}

// Name returns the Go type name registered for id.
func (id TypeID) Name() string {
	if id == 0 {
		return "untyped"
	}
	typeRegistry.mu.RLock()
	defer typeRegistry.mu.RUnlock()
	if int(id) < len(typeRegistry.names) {
		return typeRegistry.names[id]
	}
	return "unknown"
}

func (id TypeID) String() string {
	return id.Name()
}
