package gateway

import (
	"encoding/base64"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

type QRKind string

const (
	QRKindNone QRKind = "none"
	QRKindQR   QRKind = "qr"
)

// QR é a variante normalizada do payload de pareamento. Toda a variação
// de nomes de campo do gateway (base64 vs qrcode vs code) fica isolada
// em normalizeQR; o resto do sistema só enxerga este tipo.
type QR struct {
	Kind        QRKind
	ImageBase64 string
	PairingCode string
}

func (q QR) Empty() bool { return q.Kind == QRKindNone }

func normalizeQR(raw map[string]interface{}) QR {
	qr := QR{Kind: QRKindNone}

	if code, ok := stringField(raw, "pairingCode"); ok {
		qr.PairingCode = code
	}

	data, ok := stringField(raw, "base64")
	if !ok {
		data, ok = stringField(raw, "qrcode")
	}
	if !ok {
		data, ok = stringField(raw, "code")
	}
	if !ok || data == "" {
		if qr.PairingCode != "" {
			qr.Kind = QRKindQR
		}
		return qr
	}

	qr.Kind = QRKindQR
	if strings.HasPrefix(data, "data:image") {
		qr.ImageBase64 = data
		return qr
	}
	if isBase64PNG(data) {
		qr.ImageBase64 = "data:image/png;base64," + data
		return qr
	}

	// O gateway devolveu a string bruta de pareamento; renderiza o PNG
	// localmente para a UI não depender do formato do provedor.
	png, err := qrcode.Encode(data, qrcode.Medium, 256)
	if err != nil {
		qr.PairingCode = data
		return qr
	}
	qr.ImageBase64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return qr
}

func stringField(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Imagens PNG em base64 começam com a assinatura fixa do formato.
func isBase64PNG(s string) bool {
	return strings.HasPrefix(s, "iVBOR")
}
