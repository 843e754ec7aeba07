//go:build !gocv

package orb

import "errors"

func newOpenCV(Options) (Extractor, error) {
	return nil, errors.New("opencv descriptor backend unavailable: rebuild with -tags gocv")
}
