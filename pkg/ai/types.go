package ai

import (
	"context"
	"encoding/json"
	"io"
	"strings"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to a hosted model.
type Message struct {
	Role    string
	Content string
}

// System builds a system instruction message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ReplyKind tags the shape of a model reply.
type ReplyKind int

const (
	// ReplyText is a plain string reply.
	ReplyText ReplyKind = iota
	// ReplyBlocks is an ordered sequence of content blocks.
	ReplyBlocks
	// ReplyObject is a structured object reply.
	ReplyObject
)

// Block is one element of a block-shaped reply. Only text blocks carry content.
type Block struct {
	Type string
	Text string
}

// IsText reports whether the block holds text.
func (b Block) IsText() bool {
	return b.Type == "text"
}

// Reply is the tagged union of reply shapes returned by chat providers.
type Reply struct {
	Kind   ReplyKind
	Text   string
	Blocks []Block
	Object map[string]interface{}
}

// TextReply wraps a plain string reply.
func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

// BlocksReply wraps a block sequence reply.
func BlocksReply(blocks ...Block) Reply {
	return Reply{Kind: ReplyBlocks, Blocks: blocks}
}

// ObjectReply wraps a structured object reply.
func ObjectReply(object map[string]interface{}) Reply {
	return Reply{Kind: ReplyObject, Object: object}
}

// Normalize coerces any reply shape into one string. Strings are returned
// as-is, blocks are joined with a single space (non-text blocks become empty
// strings) and objects are serialised to JSON.
func (r Reply) Normalize() string {
	switch r.Kind {
	case ReplyText:
		return r.Text
	case ReplyBlocks:
		parts := make([]string, len(r.Blocks))
		for i, block := range r.Blocks {
			if block.IsText() {
				parts[i] = block.Text
			}
		}
		return strings.Join(parts, " ")
	case ReplyObject:
		if r.Object == nil {
			return ""
		}
		data, err := json.Marshal(r.Object)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// ChatModel is a hosted chat-completion model.
type ChatModel interface {
	Chat(ctx context.Context, messages ...Message) (Reply, error)
	Name() string
}

// ImageDescriber describes an image reachable at a public URL.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, imageURL, prompt string) (string, error)
}

// Transcriber converts a fully buffered audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error)
}

// Embedder produces embedding vectors for a batch of texts, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
