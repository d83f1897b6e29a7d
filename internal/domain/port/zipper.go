package port

import "context"

type Zipper interface {
	CreateZip(ctx context.Context, dir string, outputPath string) error
}
