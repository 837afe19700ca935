// Package state persists settings layers and rebuilds settings trees from
// them.
//
// A Store loads and saves one raw layer document per Ref. Documents keep
// their __overriden_keys__ markers so a reloaded studio or project layer
// replaces exactly the groups it overrode. Refs map onto layering
// identifiers:
//
//	defaults/<category>
//	studio/<category>
//	project/<project>/<category>
//
// Resolver sits on top of a Store. Open loads every layer up to the
// referenced one into a *settings.Root, Save writes the layer the root is
// editing (guarded by Meta.ETag) and Mutate combines both. ResolveValues
// merges stored documents without a schema.
//
// MemoryStore and FileStore ship with the package; sqlstore provides a
// SQLite backed Store.
package state
