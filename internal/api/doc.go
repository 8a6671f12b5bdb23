// Package api exposes the upload pipeline over HTTP. It translates ingest,
// quota and stream results into transport-friendly payloads so clients never
// couple to internal types.
//
// # Routes
//
// Audio: POST /api/files/audio, GET and DELETE /api/files/audio/{name},
// DELETE /api/files/tracks.
//
// Covers: POST /api/files/cover, GET and DELETE /api/files/cover/{name},
// GET /api/files/cover/{name}/thumbnails[/{size}].
//
// Storage: GET /api/storage/info, GET /api/storage/check?size=N.
//
// Operational: GET /api/status and GET /metrics, both unauthenticated.
//
// # Authentication
//
// Every file and storage route requires "Authorization: Bearer <token>". The
// token is verified against the identity service; the resulting user is
// upserted into the catalog and becomes the owner for the request.
//
// # Errors
//
// Failures are rendered as {"error": message} with the status chosen by
// services.HTTPStatus from the error's classification marker.
package api
