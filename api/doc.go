// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the service over HTTP with a chi router.
//
// Routes, all under /api/v1:
//
//	POST   /chat                     answer a question
//	GET    /conversations/{id}       conversation history
//	DELETE /conversations/{id}       clear a conversation
//	POST   /ingest                   multipart upload; ?async=true returns 202
//	GET    /ingest/status/{batch_id} batch progress
//	GET    /documents                committed documents
//	GET    /health                   dependency health
//	GET    /providers                generation provider chain
//	PUT    /providers                replace the provider chain
//
// Errors are returned as {"error": {"code": ..., "message": ...}} with a stable
// code per failure class.
package api
