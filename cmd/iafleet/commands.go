package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/export"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/cli"
)

// ─── migrate ───

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或升级数据库表结构",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			if err := app.Migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess("schema up to date ("+app.AppConfig().Database.Type+")"))
			return nil
		}),
	}
}

// ─── ia ───

func newIACmd() *cobra.Command {
	iaCmd := &cobra.Command{
		Use:   "ia",
		Short: "管理 IA",
	}

	iaCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出全部 IA",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			rows, err := app.Fleet().Dashboard(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderIAs(rows))
			return nil
		}),
	})

	var (
		name, phone                      string
		disabled                         bool
		channel, provider, apiKey, model string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "创建 IA（可同时创建配置）",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			enabled := !disabled
			in := repository.CreateIAInput{
				Name:        name,
				PhoneNumber: phone,
				Enabled:     &enabled,
			}
			if channel != "" || provider != "" {
				creds := map[string]string{}
				if v := strings.TrimSpace(apiKey); v != "" {
					creds[usecase.CredentialAPIKey] = v
				}
				if v := strings.TrimSpace(model); v != "" {
					creds[usecase.CredentialModel] = v
				}
				in.Config = &repository.ConfigInput{Channel: channel, Provider: provider, Credentials: creds}
			}

			ia, err := app.Fleet().CreateIA(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("created IA #%d %s", ia.ID(), ia.Name())))
			return nil
		}),
	}
	createCmd.Flags().StringVar(&name, "name", "", "IA 名称")
	createCmd.Flags().StringVar(&phone, "phone", "", "IA 电话号码")
	createCmd.Flags().BoolVar(&disabled, "disabled", false, "创建为停用状态")
	createCmd.Flags().StringVar(&channel, "channel", "", "消息渠道")
	createCmd.Flags().StringVar(&provider, "ai-api", "", "AI 服务提供方")
	createCmd.Flags().StringVar(&apiKey, "api-key", "", "API 密钥（加密保存）")
	createCmd.Flags().StringVar(&model, "model", "", "AI 模型")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("phone")
	createCmd.MarkFlagsRequiredTogether("channel", "ai-api")
	iaCmd.AddCommand(createCmd)

	iaCmd.AddCommand(&cobra.Command{
		Use:   "delete <ia-id>",
		Short: "删除 IA 及其提示词、配置与线索",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			id, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			if err := app.Fleet().DeleteIA(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("deleted IA #%d", id)))
			return nil
		}),
	})

	return iaCmd
}

// ─── prompt ───

func newPromptCmd() *cobra.Command {
	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "管理提示词",
	}

	var listIA uint
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出提示词",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			var rows []usecase.PromptOverview
			if listIA == 0 {
				all, err := app.Fleet().ListPrompts(ctx)
				if err != nil {
					return err
				}
				rows = all
			} else {
				prompts, err := app.Fleet().ListPromptsForIA(ctx, listIA)
				if err != nil {
					return err
				}
				for _, p := range prompts {
					rows = append(rows, usecase.PromptOverview{Prompt: p})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderPrompts(rows))
			return nil
		}),
	}
	listCmd.Flags().UintVar(&listIA, "ia", 0, "只列出该 IA 的提示词")
	promptCmd.AddCommand(listCmd)

	var (
		text, file string
		active     bool
	)
	addCmd := &cobra.Command{
		Use:   "add <ia-id>",
		Short: "为 IA 添加提示词",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			body := text
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read prompt file: %w", err)
				}
				body = string(data)
			}

			p, err := app.Fleet().CreatePrompt(ctx, repository.CreatePromptInput{IAID: iaID, Text: body, Active: active})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("added prompt #%d to IA #%d", p.ID(), iaID)))
			return nil
		}),
	}
	addCmd.Flags().StringVar(&text, "text", "", "提示词文本（Markdown）")
	addCmd.Flags().StringVarP(&file, "file", "f", "", "从文件读取提示词")
	addCmd.Flags().BoolVar(&active, "active", false, "设为激活提示词")
	addCmd.MarkFlagsMutuallyExclusive("text", "file")
	addCmd.MarkFlagsOneRequired("text", "file")
	promptCmd.AddCommand(addCmd)

	promptCmd.AddCommand(&cobra.Command{
		Use:   "activate <ia-id> <prompt-id>",
		Short: "激活提示词（同一 IA 下其他提示词取消激活）",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			promptID, err := parseID("prompt-id", args[1])
			if err != nil {
				return err
			}
			if _, err := app.Fleet().SetActivePrompt(ctx, iaID, promptID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("prompt #%d is now active for IA #%d", promptID, iaID)))
			return nil
		}),
	})

	promptCmd.AddCommand(&cobra.Command{
		Use:   "show <prompt-id>",
		Short: "以 Markdown 渲染显示提示词",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			id, err := parseID("prompt-id", args[0])
			if err != nil {
				return err
			}
			p, err := app.Fleet().GetPrompt(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderPrompt(p))
			return nil
		}),
	})

	return promptCmd
}

// ─── config ───

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "查看或修改 IA 配置",
	}

	var reveal bool
	showCmd := &cobra.Command{
		Use:   "show <ia-id>",
		Short: "显示 IA 配置（凭据默认脱敏）",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			view, err := app.Fleet().ConfigView(ctx, iaID)
			if err != nil {
				return err
			}
			creds := view.Credentials
			if reveal && view.CredentialsError == "" {
				if creds, err = app.Fleet().RevealCredentials(ctx, iaID); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), r.RenderConfig(view.Config, creds, view.CredentialsError))
			return nil
		}),
	}
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "显示凭据明文")
	configCmd.AddCommand(showCmd)

	var (
		channel, provider string
		creds             map[string]string
		replace           bool
	)
	setCmd := &cobra.Command{
		Use:     "set <ia-id>",
		Short:   "创建或更新 IA 配置",
		Example: "  iafleet config set 1 --channel whatsapp --ai-api openai --cred api_key=sk-... --cred ai_model=gpt-4o",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}

			var patch repository.ConfigPatch
			if cmd.Flags().Changed("channel") {
				patch.Channel = &channel
			}
			if cmd.Flags().Changed("ai-api") {
				patch.Provider = &provider
			}
			if len(creds) > 0 {
				patch.Credentials = creds
			}

			current, err := app.Fleet().UpsertConfig(ctx, iaID, patch, !replace)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("config for IA #%d at version %d", iaID, current.Version())))
			return nil
		}),
	}
	setCmd.Flags().StringVar(&channel, "channel", "", "消息渠道")
	setCmd.Flags().StringVar(&provider, "ai-api", "", "AI 服务提供方")
	setCmd.Flags().StringToStringVar(&creds, "cred", nil, "凭据键值，可重复 (key=value)")
	setCmd.Flags().BoolVar(&replace, "replace", false, "用 --cred 替换全部凭据而不是合并")
	configCmd.AddCommand(setCmd)

	return configCmd
}

// ─── lead ───

func newLeadCmd() *cobra.Command {
	leadCmd := &cobra.Command{
		Use:   "lead",
		Short: "查看与导出线索",
	}

	leadCmd.AddCommand(&cobra.Command{
		Use:   "list <ia-id>",
		Short: "列出 IA 的线索",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			leads, err := app.Fleet().ListLeadsForIA(ctx, iaID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderLeads(leads))
			return nil
		}),
	})

	var output string
	exportCmd := &cobra.Command{
		Use:   "export <ia-id>",
		Short: "导出 IA 的线索为 xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			iaID, err := parseID("ia-id", args[0])
			if err != nil {
				return err
			}
			ia, err := app.Fleet().GetIA(ctx, iaID)
			if err != nil {
				return err
			}
			leads, err := app.Fleet().ListLeadsForIA(ctx, iaID)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = export.LeadsFilename(iaID, time.Now())
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := export.WriteLeadsXLSX(f, ia.Name(), leads); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("exported %d leads to %s", len(leads), path)))
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径")
	leadCmd.AddCommand(exportCmd)

	return leadCmd
}

// ─── seed ───

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "从 YAML 文件批量导入 IA、配置与提示词",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			file, err := usecase.ParseSeed(f)
			if err != nil {
				return err
			}
			report, err := app.Fleet().Seed(ctx, file)
			if err != nil {
				if report.IAs > 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), r.RenderWarning(fmt.Sprintf("imported %d IAs before the failure", report.IAs)))
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.RenderSuccess(fmt.Sprintf("imported %d IAs and %d prompts", report.IAs, report.Prompts)))
			return nil
		}),
	}
}
