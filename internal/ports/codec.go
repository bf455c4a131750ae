package ports

import "github.com/bnema/penphinmind/internal/domain"

type Codec interface {
	Kind() domain.CodecKind
	EncodeRequest(req domain.Request) ([]byte, error)
	DecodeRequest(data []byte) (domain.Request, error)
	EncodeResponse(resp domain.Response) ([]byte, error)
	DecodeResponse(data []byte) (domain.Response, error)
}
