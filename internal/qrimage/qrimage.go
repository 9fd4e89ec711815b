// Пакет qrimage — рендеринг QR-кодов в PNG.
package qrimage

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize — размер PNG по умолчанию в пикселях.
const DefaultSize = 256

// RenderPNG рендерит QR-код для URL в PNG указанного размера.
// size <= 0 заменяется на DefaultSize.
func RenderPNG(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("ошибка рендеринга QR-кода: %w", err)
	}
	return png, nil
}
