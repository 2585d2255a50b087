package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"ai-git/internal/catalog"
)

// ModelsCmd 管理 OpenRouter 模型列表。
type ModelsCmd struct {
	List    ModelsListCmd    `command:"list" description:"List available OpenRouter models with pricing"`
	Refresh ModelsRefreshCmd `command:"refresh" description:"Refresh the cached OpenRouter model list"`
}

// ModelsListCmd 输出模型列表。
type ModelsListCmd struct {
	Refresh bool `long:"refresh" description:"refresh the cache before listing"`
	IDs     bool `long:"ids" description:"print model IDs only"`

	env *env
}

// Execute 实现 flags.Commander。
func (c *ModelsListCmd) Execute(_ []string) error {
	cat, closeFn, err := c.env.catalog()
	if err != nil {
		return err
	}
	defer closeFn()
	models, err := cat.Models(c.env.ctx, c.Refresh)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(c.env.stdout, "No OpenRouter models available")
		return nil
	}
	if c.IDs {
		for _, m := range models {
			fmt.Fprintln(c.env.stdout, m.ID)
		}
		return nil
	}
	tw := tabwriter.NewWriter(c.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL ID\tCONTEXT\tINPUT\tOUTPUT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID,
			catalog.FormatContext(m.ContextLength),
			catalog.FormatPrice(m.Pricing.Prompt),
			catalog.FormatPrice(m.Pricing.Completion))
	}
	return tw.Flush()
}

// ModelsRefreshCmd 强制刷新模型缓存。
type ModelsRefreshCmd struct {
	env *env
}

// Execute 实现 flags.Commander。
func (c *ModelsRefreshCmd) Execute(_ []string) error {
	cat, closeFn, err := c.env.catalog()
	if err != nil {
		return err
	}
	defer closeFn()
	models, err := cat.Models(c.env.ctx, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.env.stdout, "Cached %d OpenRouter models.\n", len(models))
	return nil
}

// catalog 按配置构建模型列表与缓存。没有 API Key 时仍可读取已有缓存。
func (e *env) catalog() (*catalog.Catalog, func(), error) {
	a, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	cfg := a.cfg
	var source catalog.Source
	endpoint := strings.TrimRight(cfg.LLM.OpenRouter.BaseURL, "/") + "/models"
	if fetcher, err := catalog.NewFetcher(endpoint, cfg.LLM.OpenRouter.APIKey, nil); err == nil {
		source = fetcher
	}

	closeFn := func() {}
	var cache catalog.Cache
	switch cfg.Catalog.Driver {
	case "redis":
		rc, err := catalog.NewRedisCache(e.ctx, catalog.RedisCacheConfig{
			Address:  cfg.Catalog.Redis.Address,
			Password: cfg.Catalog.Redis.Password,
			DB:       cfg.Catalog.Redis.DB,
			Key:      cfg.Catalog.Redis.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		cache = rc
		closeFn = func() { _ = rc.Close() }
	default:
		fc, err := catalog.NewFileCache(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, err
		}
		cache = fc
	}
	return catalog.New(source, cache, catalog.WithTTL(cfg.Catalog.TTL())), closeFn, nil
}

// AliasesCmd 列出别名表。
type AliasesCmd struct {
	env *env
}

// Execute 实现 flags.Commander。
func (c *AliasesCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	printAliases(c.env.stdout, a.resolver, a.cfg.Aliases.Path)
	return nil
}
