package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/alexjbarnes/tmc-client/internal/backend"
	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
)

func newCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "tmc-client",
		Usage:     "command line client for the TMC health service",
		Version:   Version,
		Writer:    a.out,
		ErrWriter: a.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: json or yaml",
				Value:   formatJSON,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			format := strings.ToLower(cmd.String("output"))
			if err := validFormat(format); err != nil {
				return ctx, err
			}

			a.format = format

			return ctx, nil
		},
		// run owns exit codes; never let the framework call os.Exit.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			loginCommand(a),
			logoutCommand(a),
			otpCommand(a),
			whoamiCommand(a),
			meCommand(a),
			refreshCommand(a),
			articlesCommand(a),
			coursesCommand(a),
			homeCommand(a),
			chatCommand(a),
		},
	}
}

// ok is printed by commands whose response carries no data.
func (a *app) ok() error {
	return a.print(map[string]bool{"success": true})
}

func firstArg(cmd *cli.Command, name string) (string, error) {
	arg := strings.TrimSpace(cmd.Args().First())
	if arg == "" {
		return "", missingArg(name)
	}

	return arg, nil
}

// idAction builds an action that takes a single id argument.
func idAction(run func(ctx context.Context, id string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := firstArg(cmd, "id")
		if err != nil {
			return err
		}

		return run(ctx, id)
	}
}

func pageFlags(defaultSize int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "page number, starting at 1", Value: 1},
		&cli.IntFlag{Name: "size", Usage: "page size", Value: defaultSize},
	}
}

// --- auth ---

func loginCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in with a WeChat identity",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "union-id", Usage: "WeChat unionId"},
			&cli.StringFlag{Name: "code", Usage: "wx.login code, exchanged for the unionId"},
			&cli.StringFlag{Name: "phone", Usage: "mobile number to bind"},
			&cli.StringFlag{Name: "phone-code", Usage: "getPhoneNumber code, decrypted to the phone"},
			&cli.StringFlag{Name: "encrypted-data", Usage: "encrypted phone payload"},
			&cli.StringFlag{Name: "iv", Usage: "phone payload IV"},
			&cli.StringFlag{Name: "nickname", Usage: "display name"},
			&cli.StringFlag{Name: "avatar", Usage: "avatar URL"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req := models.LoginRequest{
				UnionID:  cmd.String("union-id"),
				Phone:    cmd.String("phone"),
				Nickname: cmd.String("nickname"),
				Avatar:   cmd.String("avatar"),
			}

			if req.UnionID == "" && cmd.String("code") != "" {
				sess, err := a.services.Auth.Code2Session(ctx, cmd.String("code"))
				if err != nil {
					return err
				}

				req.UnionID = sess.UnionID
			}

			if req.UnionID == "" {
				return &usageError{msg: "one of --union-id or --code is required"}
			}

			if code := cmd.String("phone-code"); code != "" {
				phone, err := a.services.Auth.DecryptPhone(ctx, models.PhoneRequest{
					Code:          code,
					EncryptedData: cmd.String("encrypted-data"),
					IV:            cmd.String("iv"),
				})
				if err != nil {
					return err
				}

				req.Phone = phone
			}

			if req.Phone != "" {
				phone, ok := backend.NormalizePhone(req.Phone)
				if !ok {
					return apperrors.ErrInvalidPhone
				}

				req.Phone = phone
			}

			user, err := a.services.Auth.LoginWithWechat(ctx, req)
			if err != nil {
				return err
			}

			return a.print(user)
		},
	}
}

func logoutCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session and forget stored tokens",
		Action: func(ctx context.Context, _ *cli.Command) error {
			if err := a.services.Auth.Logout(ctx); err != nil {
				return err
			}

			return a.ok()
		},
	}
}

func otpCommand(a *app) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "phone", Usage: "mobile number", Required: true},
			&cli.StringFlag{Name: "purpose", Usage: "LOGIN or BIND_PHONE", Value: models.OTPPurposeLogin},
		}
	}

	return &cli.Command{
		Name:  "otp",
		Usage: "one-time SMS codes",
		Commands: []*cli.Command{
			{
				Name:  "send",
				Usage: "send a code to a phone",
				Flags: flags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := a.services.Auth.SendOTP(ctx, cmd.String("phone"), cmd.String("purpose")); err != nil {
						return err
					}

					return a.ok()
				},
			},
			{
				Name:      "verify",
				Usage:     "verify a received code",
				ArgsUsage: "<code>",
				Flags:     flags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					code, err := firstArg(cmd, "code")
					if err != nil {
						return err
					}

					if err := a.services.Auth.VerifyOTP(ctx, cmd.String("phone"), code, cmd.String("purpose")); err != nil {
						return err
					}

					return a.ok()
				},
			},
		},
	}
}

func whoamiCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the cached user without calling the server",
		Action: func(context.Context, *cli.Command) error {
			user := a.services.Auth.CurrentUser()
			if user == nil {
				return apperrors.ErrNotLoggedIn
			}

			return a.print(user)
		},
	}
}

func meCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "me",
		Usage: "fetch the signed-in user's profile",
		Action: func(ctx context.Context, _ *cli.Command) error {
			user, err := a.services.Profile.Profile(ctx)
			if err != nil {
				return err
			}

			return a.print(user)
		},
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "show or save the health profile",
				Action: func(ctx context.Context, _ *cli.Command) error {
					profile, err := a.services.Profile.HealthProfile(ctx)
					if err != nil {
						return err
					}

					return a.print(profile)
				},
				Commands: []*cli.Command{
					{
						Name:      "save",
						Usage:     "replace the health profile with a JSON object",
						ArgsUsage: "<json>",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							raw, err := firstArg(cmd, "json")
							if err != nil {
								return err
							}

							var profile models.HealthProfile
							if err := json.Unmarshal([]byte(raw), &profile); err != nil {
								return &usageError{msg: fmt.Sprintf("health profile must be a JSON object: %v", err)}
							}

							if err := a.services.Profile.SaveHealthProfile(ctx, profile); err != nil {
								return err
							}

							return a.ok()
						},
					},
				},
			},
			{
				Name:  "membership",
				Usage: "show membership status",
				Action: func(ctx context.Context, _ *cli.Command) error {
					status, err := a.services.Profile.MembershipStatus(ctx)
					if err != nil {
						return err
					}

					return a.print(status)
				},
			},
		},
	}
}

func refreshCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "exchange the refresh token for a new access token",
		Action: func(ctx context.Context, _ *cli.Command) error {
			if !a.services.Auth.IsLoggedIn() {
				return apperrors.ErrNotLoggedIn
			}

			if err := a.client.Refresh(ctx); err != nil {
				return err
			}

			return a.print(a.services.Auth.CurrentUser())
		},
	}
}

// --- content ---

func articlesCommand(a *app) *cli.Command {
	content := func() *backend.Content { return a.services.Content }

	toggle := func(name, usage string, run func(*backend.Content, context.Context, string) error) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<id>",
			Action: idAction(func(ctx context.Context, id string) error {
				if err := run(content(), ctx, id); err != nil {
					return err
				}

				return a.ok()
			}),
		}
	}

	return &cli.Command{
		Name:  "articles",
		Usage: "health articles",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list articles",
				Flags: append(pageFlags(backend.DefaultArticlePageSize),
					&cli.StringFlag{Name: "tag", Usage: "filter by tag"},
					&cli.StringFlag{Name: "keyword", Usage: "search keyword"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					page, err := content().Articles(ctx, models.ArticleQuery{
						Page:    cmd.Int("page"),
						Size:    cmd.Int("size"),
						Tag:     cmd.String("tag"),
						Keyword: cmd.String("keyword"),
					})
					if err != nil {
						return err
					}

					return a.print(page)
				},
			},
			{
				Name:      "show",
				Usage:     "show one article and count the view",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id string) error {
					article, err := content().Article(ctx, id)
					if err != nil {
						return err
					}

					if err := content().IncrementViews(ctx, id); err != nil {
						a.logger.Warn("counting article view",
							slog.String("id", id),
							slog.String("error", err.Error()),
						)
					}

					return a.print(article)
				}),
			},
			{
				Name:      "comments",
				Usage:     "list comments on an article",
				ArgsUsage: "<id>",
				Flags:     pageFlags(backend.DefaultCommentPageSize),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := firstArg(cmd, "id")
					if err != nil {
						return err
					}

					page, err := content().ArticleComments(ctx, id, cmd.Int("page"), cmd.Int("size"))
					if err != nil {
						return err
					}

					return a.print(page)
				},
			},
			{
				Name:      "comment",
				Usage:     "comment on an article",
				ArgsUsage: "<id> <text>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reply-to", Usage: "parent comment id"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := firstArg(cmd, "id")
					if err != nil {
						return err
					}

					text := strings.TrimSpace(strings.Join(cmd.Args().Tail(), " "))
					if text == "" {
						return missingArg("text")
					}

					comment, err := content().PostComment(ctx, id, models.CommentRequest{
						Content:  text,
						ParentID: cmd.String("reply-to"),
					})
					if err != nil {
						return err
					}

					return a.print(comment)
				},
			},
			toggle("like", "like an article", (*backend.Content).LikeArticle),
			toggle("unlike", "remove a like", (*backend.Content).UnlikeArticle),
			toggle("favorite", "add an article to favorites", (*backend.Content).FavoriteArticle),
			toggle("unfavorite", "remove an article from favorites", (*backend.Content).UnfavoriteArticle),
		},
	}
}

// --- courses ---

func coursesCommand(a *app) *cli.Command {
	courses := func() *backend.Courses { return a.services.Courses }

	return &cli.Command{
		Name:  "courses",
		Usage: "video courses",
		Commands: []*cli.Command{
			{
				Name:  "tags",
				Usage: "list the course tag tree",
				Action: func(ctx context.Context, _ *cli.Command) error {
					tags, err := courses().CourseTags(ctx)
					if err != nil {
						return err
					}

					return a.print(tags)
				},
			},
			{
				Name:  "list",
				Usage: "list courses",
				Flags: append(pageFlags(backend.DefaultArticlePageSize),
					&cli.StringFlag{Name: "primary-tag", Usage: "primary tag code"},
					&cli.StringFlag{Name: "secondary-tag", Usage: "secondary tag code"},
					&cli.StringFlag{Name: "keyword", Usage: "search keyword"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					page, err := courses().Courses(ctx, backend.CourseQuery{
						Page:         cmd.Int("page"),
						Size:         cmd.Int("size"),
						PrimaryTag:   cmd.String("primary-tag"),
						SecondaryTag: cmd.String("secondary-tag"),
						Keyword:      cmd.String("keyword"),
					})
					if err != nil {
						return err
					}

					return a.print(page)
				},
			},
			{
				Name:      "show",
				Usage:     "show one course with its sections",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id string) error {
					course, err := courses().Course(ctx, id)
					if err != nil {
						return err
					}

					return a.print(course)
				}),
			},
			{
				Name:      "section",
				Usage:     "show the course a section belongs to",
				ArgsUsage: "<section-id>",
				Action: idAction(func(ctx context.Context, id string) error {
					course, err := courses().CoursesBySection(ctx, id)
					if err != nil {
						return err
					}

					return a.print(course)
				}),
			},
			{
				Name:      "enroll",
				Usage:     "enroll in a course",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id string) error {
					if err := courses().Enroll(ctx, id); err != nil {
						return err
					}

					return a.ok()
				}),
			},
			{
				Name:      "status",
				Usage:     "show enrollment and progress",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id string) error {
					enrollment, err := courses().EnrollmentStatus(ctx, id)
					if err != nil {
						return err
					}

					return a.print(enrollment)
				}),
			},
			{
				Name:      "progress",
				Usage:     "report learning progress",
				ArgsUsage: "<id> <percent>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := firstArg(cmd, "id")
					if err != nil {
						return err
					}

					raw := cmd.Args().Get(1)
					if raw == "" {
						return missingArg("percent")
					}

					percent, err := strconv.Atoi(raw)
					if err != nil {
						return &usageError{msg: fmt.Sprintf("percent must be a whole number, got %q", raw)}
					}

					if err := courses().UpdateProgress(ctx, id, percent); err != nil {
						return err
					}

					return a.ok()
				},
			},
		},
	}
}

// --- home & AI ---

func homeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "home",
		Usage: "load the home page sections",
		Action: func(ctx context.Context, _ *cli.Command) error {
			overview, err := a.services.Home.Overview(ctx)
			if err != nil {
				return err
			}

			return a.print(overview)
		},
	}
}

func chatCommand(a *app) *cli.Command {
	ask := func(ctx context.Context, cmd *cli.Command) error {
		question := strings.Join(cmd.Args().Slice(), " ")
		if strings.TrimSpace(question) == "" {
			return missingArg("question")
		}

		reply, err := a.services.AI.SendMessage(ctx, models.ChatRequest{
			Question:    question,
			TemplateID:  cmd.String("template"),
			Tag:         cmd.String("tag"),
			Temperature: cmd.Float("temperature"),
		})
		if err != nil {
			return err
		}

		return a.print(reply)
	}

	askFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "template", Usage: "dialog template id"},
			&cli.StringFlag{Name: "tag", Usage: "dialog tag"},
			&cli.FloatFlag{Name: "temperature", Usage: "sampling temperature", Value: backend.DefaultTemperature},
		}
	}

	return &cli.Command{
		Name:      "chat",
		Usage:     "ask the health assistant",
		ArgsUsage: "<question>",
		Flags:     askFlags(),
		Action:    ask,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "send one question",
				ArgsUsage: "<question>",
				Flags:     askFlags(),
				Action:    ask,
			},
			{
				Name:      "init",
				Usage:     "open a dialog from a template",
				ArgsUsage: "<template-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "history-size", Usage: "history messages to load", Value: backend.DefaultHistorySize},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := firstArg(cmd, "template-id")
					if err != nil {
						return err
					}

					page, err := a.services.AI.InitDialog(ctx, id, cmd.Int("history-size"))
					if err != nil {
						return err
					}

					return a.print(page)
				},
			},
			{
				Name:      "history",
				Usage:     "page through earlier messages",
				ArgsUsage: "<tag>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cursor", Usage: "cursor from the previous page"},
					&cli.IntFlag{Name: "size", Usage: "page size", Value: backend.DefaultHistorySize},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					tag, err := firstArg(cmd, "tag")
					if err != nil {
						return err
					}

					page, err := a.services.AI.LoadHistory(ctx, tag, cmd.String("cursor"), cmd.Int("size"))
					if err != nil {
						return err
					}

					return a.print(page)
				},
			},
		},
	}
}
