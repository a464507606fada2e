package mktutil

import (
	"context"
	"time"

	"github.com/KarpelesLab/apirouter"
)

func BroadcastMsg(ev string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	apirouter.BroadcastJson(ctx, map[string]any{"result": "event", "event": ev, "data": data})
}

// NotifySuccess and NotifyError feed the UI toast channel. The id
// deduplicates repeats of the same notification on the front side.
func NotifySuccess(message, id string) {
	BroadcastMsg("toast", map[string]any{"level": "success", "message": message, "id": id})
}

func NotifyError(message, id string) {
	BroadcastMsg("toast", map[string]any{"level": "error", "message": message, "id": id})
}

func NotifyInfo(message, id string) {
	BroadcastMsg("toast", map[string]any{"level": "info", "message": message, "id": id})
}
