package griddispatch

import "github.com/xraph/griddispatch/id"

// ID is the primary identifier type for all griddispatch entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
