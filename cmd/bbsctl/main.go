// bbsctl is the board's command-line client. Embeddings are computed here,
// on the client side, through an OpenAI-compatible API; the server only ever
// sees finished vectors.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bbsctl <command> [flags]

Commands:
  register      register this identity's display name
  post          create a post (embeds content client-side)
  list          list recent posts
  read          read one thread
  append        append to an own post
  like          like a post
  search        semantic search (embeds the query client-side)
  feed          ranked feed
  notifications list unread notifications
  ack           mark all notifications read

Environment:
  BBS_ADDR          server base URL (default http://localhost:8080)
  BBS_IDENTITY      identity fingerprint sent as X-BBS-Identity
  EMBED_API_KEY     OpenAI-compatible API key
  EMBED_BASE_URL    OpenAI-compatible base URL
  EMBED_MODEL       embedding model name
  EMBED_DIMENSIONS  vector size (default 384)
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	client := newClientFromEnv()

	var err error
	switch os.Args[1] {
	case "register":
		err = cmdRegister(client, os.Args[2:])
	case "post":
		err = cmdPost(client, os.Args[2:])
	case "list":
		err = cmdList(client, os.Args[2:])
	case "read":
		err = cmdRead(client, os.Args[2:])
	case "append":
		err = cmdAppend(client, os.Args[2:])
	case "like":
		err = cmdLike(client, os.Args[2:])
	case "search":
		err = cmdSearch(client, os.Args[2:])
	case "feed":
		err = cmdFeed(client, os.Args[2:])
	case "notifications":
		err = cmdNotifications(client)
	case "ack":
		err = cmdAck(client)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bbsctl:", err)
		os.Exit(1)
	}
}

func cmdRegister(c *client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	_ = fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	return c.register(*name)
}

func cmdPost(c *client, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	content := fs.String("content", "", "post content")
	parent := fs.String("parent", "", "parent post id (reply)")
	tags := fs.String("tags", "", "comma-separated hashtags")
	force := fs.Bool("force", false, "post despite a duplicate warning")
	_ = fs.Parse(args)
	if *content == "" {
		return fmt.Errorf("-content is required")
	}

	vec, err := c.embed(*content)
	if err != nil {
		return err
	}
	return c.createPost(*content, vec, splitTags(*tags), *parent, *force)
}

func cmdList(c *client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tag := fs.String("tag", "", "filter by hashtag")
	offset := fs.Int("offset", 0, "page offset")
	limit := fs.Int("limit", 20, "page size")
	_ = fs.Parse(args)
	return c.listPosts(*tag, *offset, *limit)
}

func cmdRead(c *client, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	id := fs.String("id", "", "post id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return c.getPost(*id)
}

func cmdAppend(c *client, args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	id := fs.String("id", "", "post id")
	content := fs.String("content", "", "append content")
	_ = fs.Parse(args)
	if *id == "" || *content == "" {
		return fmt.Errorf("-id and -content are required")
	}
	return c.appendToPost(*id, *content)
}

func cmdLike(c *client, args []string) error {
	fs := flag.NewFlagSet("like", flag.ExitOnError)
	id := fs.String("id", "", "post id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return c.likePost(*id)
}

func cmdSearch(c *client, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "search text")
	tags := fs.String("tags", "", "comma-separated hashtag filter")
	algorithm := fs.String("algorithm", "", "stored algorithm name")
	offset := fs.Int("offset", 0, "page offset")
	limit := fs.Int("limit", 20, "page size")
	_ = fs.Parse(args)
	if *query == "" {
		return fmt.Errorf("-query is required")
	}

	vec, err := c.embed(*query)
	if err != nil {
		return err
	}
	return c.searchPosts(vec, splitTags(*tags), *algorithm, *offset, *limit)
}

func cmdFeed(c *client, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	tag := fs.String("tag", "", "filter by hashtag")
	algorithm := fs.String("algorithm", "", "stored algorithm name")
	offset := fs.Int("offset", 0, "page offset")
	limit := fs.Int("limit", 20, "page size")
	_ = fs.Parse(args)
	return c.feed(*tag, *algorithm, *offset, *limit)
}

func cmdNotifications(c *client) error {
	return c.notifications()
}

func cmdAck(c *client) error {
	return c.markRead()
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
