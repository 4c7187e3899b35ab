package services

import (
	"context"
	"fmt"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// Transitions des arêtes d'engagement (likes, votes, partages, news). Le flip
// distingue toujours un retrait par ban d'un retrait volontaire, pour que la
// réactivation ne restaure jamais un unlike fait avant le ban.

// likeMatch : famille des likes portés par un booléen (status / isLike) plus
// le flag isBanned qui marque le retrait par cycle de vie.
func likeMatch(dir domain.Direction, field string) (domain.Filter, map[string]any) {
	if dir == domain.DirDeactivate {
		return domain.Filter{field: true},
			map[string]any{field: false, "isBanned": true}
	}
	return domain.Filter{field: false, "isBanned": true},
		map[string]any{field: true, "isBanned": false}
}

func (s *LifecycleService) postLikeTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match, set := likeMatch(dir, "status")
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollPostLikes, match, set, "postid")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		postID := row.Str("postid")
		ds.Inc(postID, "like_count", sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(postID, "likePostBy", accountID)
		} else {
			ds.Push(postID, "likePostBy", accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollPosts, ds)
}

func (s *LifecycleService) commentLikeTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match, set := likeMatch(dir, "isLike")
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollCommentLikes, match, set, "commentid")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		commentID := row.Str("commentid")
		ds.Inc(commentID, "like_count", sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(commentID, "likeCommentBy", accountID)
		} else {
			ds.Push(commentID, "likeCommentBy", accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollComments, ds)
}

func (s *LifecycleService) replyLikeTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match, set := likeMatch(dir, "isLike")
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollReplyLikes, match, set, "replyid")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		replyID := row.Str("replyid")
		ds.Inc(replyID, "like_count", sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(replyID, "likeReplyBy", accountID)
		} else {
			ds.Push(replyID, "likeReplyBy", accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollReplies, ds)
}

// voteTransition : le tally d'un sondage est une map imbriquée
// poll.<level>.<option>. L'option et le niveau sont lus ligne par ligne —
// deux votes du même compte peuvent viser des options différentes. Jamais de
// nom de champ construit depuis une string arbitraire ailleurs qu'ici.
func (s *LifecycleService) voteTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := contentMatch(dir)
	match["uid"] = accountID

	rows, err := s.selectFlip(ctx, domain.CollVotes, match, contentSet(dir), "postid", "poll", "level")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		postID := row.Str("postid")
		option := row.Str("poll")
		level := row.Int64("level")
		ds.Inc(postID, fmt.Sprintf("poll.%d.%s", level, option), sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(postID, "votedBy", map[string]any{"userId": accountID})
		} else {
			ds.Push(postID, "votedBy", map[string]any{"userId": accountID, "option": option})
		}
	}
	return s.ledger.apply(ctx, domain.CollPosts, ds)
}

// sharePostTransition : un partage est soit un "spread" soit un repost, le
// remark distingue les deux compteurs cibles.
func (s *LifecycleService) sharePostTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := domain.Filter{"uid": accountID, "status": statusFrom(dir, domain.StatusActive)}
	set := map[string]any{"status": statusTo(dir, domain.StatusActive)}

	rows, err := s.selectFlip(ctx, domain.CollSharePosts, match, set, "postid", "remark")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		postID := row.Str("postid")
		countField, byField := "share_count", "rePostBy"
		if row.Str("remark") == "spread" {
			countField, byField = "spread_count", "spreadPostBy"
		}
		ds.Inc(postID, countField, sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(postID, byField, accountID)
		} else {
			ds.Push(postID, byField, accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollPosts, ds)
}

func (s *LifecycleService) newsLikeTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := domain.Filter{"uid": accountID, "status": statusFrom(dir, domain.StatusLiked)}
	set := map[string]any{"status": statusTo(dir, domain.StatusLiked)}

	rows, err := s.selectFlip(ctx, domain.CollNewsLikes, match, set, "newsId")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		newsID := row.Str("newsId")
		ds.Inc(newsID, "likeCount", sign(dir))
		if dir == domain.DirDeactivate {
			ds.Pull(newsID, "likedBy", accountID)
		} else {
			ds.Push(newsID, "likedBy", accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollNewsItems, ds)
}

// savedNewsTransition n'a pas de compteur associé, seulement le marqueur
// savedBy sur la news.
func (s *LifecycleService) savedNewsTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match := domain.Filter{"uid": accountID, "status": statusFrom(dir, domain.StatusActive)}
	set := map[string]any{"status": statusTo(dir, domain.StatusActive)}

	rows, err := s.selectFlip(ctx, domain.CollSavedNews, match, set, "news")
	if err != nil {
		return err
	}

	ds := newDeltaSet()
	for _, row := range rows {
		newsID := row.Str("news")
		if dir == domain.DirDeactivate {
			ds.Pull(newsID, "savedBy", accountID)
		} else {
			ds.Push(newsID, "savedBy", accountID)
		}
	}
	return s.ledger.apply(ctx, domain.CollNewsItems, ds)
}
