// Copyright 2025 walteh LLC
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

/*
Package watch runs a watch session: it observes a directory tree and keeps
the indexing backend informed about every file that settles.

📦 Pipeline

	fsnotify ──▶ ignore filter ──▶ debouncer ──▶ classifier ──▶ uploader
	                 │                               │              │
	                 └── counted                     └── per-path FIFO, bounded
	                                                     by a semaphore

🔄 Lifecycle

	Initializing ──Run──▶ ActiveWatching ──ctx done──▶ ShuttingDown ──▶ Stopped

New validates the root and the credentials. Run subscribes to every
directory that is not pruned by the ignore filter, replays existing files as
Created changes, logs "Initial scan complete" once the replay has been
delivered and then streams live changes until the context is cancelled.

On shutdown pending debounce countdowns are discarded, uploads already
running finish with a context that is detached from the cancellation, and
queued uploads that never started are dropped.

⚠️ Errors

Watcher errors are logged and counted. The session only fails when it can no
longer see changes: Run returns ErrRootRemoved when the watched directory is
deleted or renamed, and ErrWatcherClosed when the underlying watcher closes
its channels on its own.
*/
package watch
