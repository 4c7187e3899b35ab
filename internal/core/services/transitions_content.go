package services

import (
	"context"
	"errors"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// Transitions du contenu possédé (posts, comments, replies). Chaque enfant
// transitionné vaut un delta de ±1 sur le compteur de son parent ; les deux
// parents possibles d'un commentaire (post ou news) sont des entités
// distinctes et reçoivent chacun leur propre delta.

func (s *LifecycleService) postTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := contentMatch(dir)
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollPosts, match, contentSet(dir), "newsId")
	if err != nil {
		return err
	}

	// Un post hébergé par une news compte dans son postCount.
	ds := newDeltaSet()
	for _, row := range rows {
		if newsID := row.Str("newsId"); newsID != "" {
			ds.Inc(newsID, "postCount", sign(dir))
		}
	}
	return s.ledger.apply(ctx, domain.CollNewsItems, ds)
}

func (s *LifecycleService) commentTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := contentMatch(dir)
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollComments, match, contentSet(dir), "postid", "newsId")
	if err != nil {
		return err
	}

	postDeltas := newDeltaSet()
	newsDeltas := newDeltaSet()
	for _, row := range rows {
		if postID := row.Str("postid"); postID != "" {
			postDeltas.Inc(postID, "comment_count", sign(dir))
		} else if newsID := row.Str("newsId"); newsID != "" {
			newsDeltas.Inc(newsID, "commentCount", sign(dir))
		}
	}
	return errors.Join(
		s.ledger.apply(ctx, domain.CollPosts, postDeltas),
		s.ledger.apply(ctx, domain.CollNewsItems, newsDeltas),
	)
}

func (s *LifecycleService) replyTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := contentMatch(dir)
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollReplies, match, contentSet(dir), "commentid")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		if commentID := row.Str("commentid"); commentID != "" {
			ds.Inc(commentID, "reply_count", sign(dir))
		}
	}
	return s.ledger.apply(ctx, domain.CollComments, ds)
}
