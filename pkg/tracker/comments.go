package tracker

import (
	"context"
	"fmt"
	"strings"

	"taskhub/pkg/audit"
	"taskhub/pkg/comment"
	"taskhub/pkg/store"
)

// AddComment stores a comment, notifies the task's audience, and notifies
// every @mentioned active member.
func (s *Service) AddComment(ctx context.Context, a Actor, taskID int64, content string) (*comment.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("comment content is required")
	}

	var c *comment.Comment
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := loadTask(ctx, r, a, taskID); err != nil {
			return err
		}
		var err error
		if c, err = r.Comments.Create(ctx, &comment.Comment{TaskID: taskID, AuthorID: a.UserID, Content: content}); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionCommentAdded,
			fmt.Sprintf("comment %d on task %d", c.ID, taskID), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	created, err := s.notifier.NotifyTaskCommented(ctx, c)
	s.notified("task_commented", created, err)
	s.notifyMentions(ctx, c)
	return c, nil
}

func (s *Service) notifyMentions(ctx context.Context, c *comment.Comment) {
	names := comment.Mentions(c.Content)
	if len(names) == 0 {
		return
	}
	t, err := s.repos.Tasks.Get(ctx, c.TaskID)
	if err != nil {
		s.log.Warn("tracker: resolve mentioned task", "task_id", c.TaskID, "err", err)
		return
	}
	users, err := s.repos.Users.ByUsernames(ctx, names)
	if err != nil {
		s.log.Warn("tracker: resolve mentions", "comment_id", c.ID, "err", err)
		return
	}
	members, err := s.repos.Projects.ActiveMembers(ctx, t.ProjectID)
	if err != nil {
		s.log.Warn("tracker: resolve mention audience", "project_id", t.ProjectID, "err", err)
		return
	}
	active := make(map[int64]bool, len(members))
	for _, m := range members {
		active[m.UserID] = true
	}
	var ids []int64
	for _, u := range users {
		if active[u.ID] {
			ids = append(ids, u.ID)
		}
	}
	created, err := s.notifier.NotifyMentioned(ctx, t, c, ids)
	s.notified("mentioned_in_comment", created, err)
}

// Comments lists a task's comments oldest first.
func (s *Service) Comments(ctx context.Context, a Actor, taskID int64) ([]comment.Comment, error) {
	if _, err := loadTask(ctx, s.repos, a, taskID); err != nil {
		return nil, err
	}
	return s.repos.Comments.ByTask(ctx, taskID)
}
