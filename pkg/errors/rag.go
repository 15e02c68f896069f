package errors

import (
	"context"
	stderrors "errors"
	"net"

	"google.golang.org/grpc/codes"
)

// RAG 服务错误码 (AA = 20)。
// 各组件只返回下列错误，调用方据此决定重试与提示策略。
var (
	// 请求参数错误 (类别 01)
	ErrInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrExtraction     = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), 400, codes.InvalidArgument, "Document text extraction failed", "文档文本提取失败"))

	// 资源错误 (类别 04)
	ErrSessionNotFound = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), 404, codes.NotFound, "Session not found", "会话不存在"))

	// 上游服务错误 (类别 10)
	ErrEmbedding        = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1), 502, codes.Unavailable, "Embedding failed", "向量嵌入失败"))
	ErrStoreUnavailable = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), 503, codes.Unavailable, "Vector store unavailable", "向量存储不可用"))
	ErrRetrieval        = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 3), 502, codes.Unavailable, "Retrieval failed", "检索失败"))
	ErrGeneration       = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 4), 502, codes.Unavailable, "Generation failed", "生成回复失败"))

	// 超时 (类别 11)
	ErrTimeout = Register(New(MakeCode(ServiceRAG, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Upstream call timed out", "上游调用超时"))
)

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// Wrap classifies err as kind, or as ErrTimeout when the deadline expired.
// A nil err yields nil.
func Wrap(err error, kind *Errno) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return ErrTimeout.WithCause(err)
	}
	return kind.WithCause(err)
}

// FromContext returns ErrTimeout when ctx hit its deadline and the plain
// context error when it was cancelled. A live context yields nil.
func FromContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.WithCause(err)
	}
	return err
}
