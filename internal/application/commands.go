package application

import "github.com/bnema/penphinmind/internal/domain"

type SetTokenCommand struct {
	MindID domain.MindID
	Token  string
}

type RemoveTokenCommand struct {
	MindID domain.MindID
}
