package cardano

import (
	"bytes"
	"io"

	sdkmath "cosmossdk.io/math"
)

func decFromInt(v int64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(v)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
