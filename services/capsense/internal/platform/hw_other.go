//go:build !(rp2040 || rp2350) && (!linux || baremetal)

package platform

import (
	"context"

	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
)

func openHW(ctx context.Context, b *config.Board, r *Resources) error {
	return &errcode.E{C: errcode.Unsupported, Op: "platform.open", Msg: "no hardware back end for this target"}
}
