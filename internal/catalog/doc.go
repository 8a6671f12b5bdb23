// Package catalog persists owners and stored assets in SQLite.
//
// The Store records every audio and cover asset accepted by the ingest
// pipeline together with its original filename, declared content type and
// extracted metadata. Owner quotas live next to the assets so the quota guard
// can read the ceiling and the live usage aggregate from one place; usage is
// always a SUM over asset rows and is never cached.
//
// Schema changes bump schemaVersion in schema.go; operators delete the catalog
// to adopt a new schema. Files on disk remain owned by the filestore package.
package catalog
