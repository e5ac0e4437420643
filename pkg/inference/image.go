package inference

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"net/http"
)

// EncodeJPEG encodes an image as a JPEG frame.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeImageBytesBase64 encodes raw JPEG bytes to base64.
func EncodeImageBytesBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DetectMIME returns the image MIME type of data, defaulting to JPEG.
func DetectMIME(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/png", "image/gif", "image/webp", "image/jpeg":
		return ct
	}
	return "image/jpeg"
}
