// Package handlers implements the REST surface of the fake controller.
//
// Only the part of /api/v2/ the harness talks to is served: ping, me, config,
// tokens, the generic resource collections, launch and update endpoints,
// unified jobs with detail and cancel, instances, instance groups and
// notification templates. Responses use the controller's JSON shapes from
// api/v2 and its trailing slash paths.
//
// Errors follow the controller:
//
//	┌──────────────────────────────┬────────┬───────────────────────────────┐
//	│ Error Type                   │ Status │ Body                          │
//	├──────────────────────────────┼────────┼───────────────────────────────┤
//	│ InvalidArgumentError         │ 400    │ {"<field>": ["<reason>"]}     │
//	│ ResourceNotFoundError        │ 404    │ {"detail": "Not found."}      │
//	│ UnknownKindError             │ 404    │ {"detail": "Not found."}      │
//	│ InvalidStateError            │ 405    │ {"detail": "<message>"}       │
//	│ anything else                │ 500    │ {"detail": "..."}             │
//	└──────────────────────────────┴────────┴───────────────────────────────┘
//
// List endpoints return the paginated envelope {count, next, previous,
// results} and accept page and page_size (default 25, at most 200).
package handlers
