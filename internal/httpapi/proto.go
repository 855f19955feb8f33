package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

const (
	// maxImageBody caps capture uploads in every encoding.
	maxImageBody = 10 << 20
	maxJSONBody  = 64 << 10

	contentTypeProtobuf = "application/x-protobuf"
)

func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func isProtobufType(v string) bool {
	switch mediaType(v) {
	case "application/x-protobuf", "application/protobuf", "application/octet-stream":
		return true
	}
	return false
}

// isProtobuf reports whether the request body is a protobuf message.
func isProtobuf(r *http.Request) bool {
	return isProtobufType(r.Header.Get("Content-Type"))
}

// wantsProtobuf reports whether the response should be protobuf: an
// explicit Accept wins, otherwise the response mirrors the request.
func wantsProtobuf(r *http.Request) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" {
		return isProtobufType(a)
	}
	return isProtobuf(r)
}

// readBody reads at most limit bytes; larger bodies are rejected rather
// than truncated.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, domain.ErrInvalidInput.WithMessage("could not read request body").WithError(err)
	}
	if int64(len(body)) > limit {
		return nil, domain.ErrInvalidInput.WithMessagef("request body exceeds %d bytes", limit)
	}
	return body, nil
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, limit int64, msg proto.Message) error {
	body, err := readBody(r, limit)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(body, msg); err != nil {
		return domain.ErrInvalidInput.WithMessage("invalid protobuf body").WithError(err)
	}
	return nil
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
