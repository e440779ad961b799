package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/extractflow/types"
	"github.com/BaSui01/extractflow/validation"
)

// ExtractionEmptyError 表示模型输出中找不到 JSON 对象。
type ExtractionEmptyError struct {
	Raw string
}

func (e *ExtractionEmptyError) Error() string {
	return "no JSON object found in model response"
}

// Messages 返回反馈给模型的说明。
func (e *ExtractionEmptyError) Messages() []string {
	return []string{"response did not contain a JSON object"}
}

func (e *ExtractionEmptyError) Code() types.ErrorCode { return types.ErrExtractionEmpty }

// ValidationError 表示结构正确的值没有通过声明的校验规则。
type ValidationError struct {
	Result validation.Result
}

func (e *ValidationError) Error() string {
	msgs := e.Result.Messages()
	if len(msgs) == 1 {
		return "validation failed: " + msgs[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(msgs), strings.Join(msgs, "; "))
}

// Messages 返回所有校验失败信息。
func (e *ValidationError) Messages() []string { return e.Result.Messages() }

func (e *ValidationError) Code() types.ErrorCode { return types.ErrValidationFailed }

// RetriesExhaustedError 在所有尝试都失败后返回，携带最后一次尝试的错误信息。
type RetriesExhaustedError struct {
	Attempts int
	Last     error
	Messages []string
	// History 是全部尝试记录
	History []Attempt
}

func (e *RetriesExhaustedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("extraction failed after %d attempt(s): %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("extraction failed after %d attempt(s): %s", e.Attempts, strings.Join(e.Messages, "; "))
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

func (e *RetriesExhaustedError) Code() types.ErrorCode { return types.ErrRetriesExhausted }

// feedback 取出可以反馈给模型的错误列表。
func feedback(err error) []string {
	var m interface{ Messages() []string }
	if errors.As(err, &m) {
		if msgs := m.Messages(); len(msgs) > 0 {
			return msgs
		}
	}
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}
