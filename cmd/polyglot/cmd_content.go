package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// openCatalog loads the curriculum the daemon would serve
func openCatalog() (*content.Catalog, error) {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	catalog, err := content.Open(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("load curriculum: %w", err)
	}
	return catalog, nil
}

func cmdLanguages(_ []string, out io.Writer) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	printLanguages(catalog, out)
	return nil
}

func printLanguages(catalog *content.Catalog, out io.Writer) {
	fmt.Fprintln(out, "Languages:")
	for _, lang := range catalog.Languages() {
		fmt.Fprintf(out, "  %s (%s)\n", lang.Name, lang.ID)
		if lang.Description != "" {
			fmt.Fprintf(out, "    %s\n", lang.Description)
		}
		for _, avail := range catalog.Availability(lang.ID) {
			if !avail.Enabled {
				fmt.Fprintf(out, "    %-13s coming soon\n", avail.Level)
				continue
			}
			fmt.Fprintf(out, "    %-13s %d topics, %d lessons\n", avail.Level, avail.Topics, avail.Lessons)
		}
		fmt.Fprintln(out)
	}
}

func cmdCourse(args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: polyglot course <language> <level>")
	}
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	return printCourse(catalog, args[0], args[1], out)
}

func printCourse(catalog *content.Catalog, languageID, levelName string, out io.Writer) error {
	lang, ok := catalog.Language(languageID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLanguageNotFound, languageID)
	}
	level, err := domain.ParseSkillLevel(levelName)
	if err != nil {
		return err
	}

	course, found := catalog.ContentFor(lang.ID, level).Get()
	if !found {
		return fmt.Errorf("no %s course for %s", level, lang.Name)
	}

	fmt.Fprintf(out, "%s - %s\n\n", lang.Name, level)
	if course.Introduction != "" {
		fmt.Fprintf(out, "%s\n\n", course.Introduction)
	}
	if len(course.Topics) == 0 {
		fmt.Fprintln(out, "No lessons yet.")
		return nil
	}
	for i, topic := range course.Topics {
		fmt.Fprintf(out, "%d. %s\n", i+1, topic.Title)
		for _, sub := range topic.SubTopics {
			fmt.Fprintf(out, "   - %s [%s]\n", sub.Title, sub.ID)
		}
	}
	return nil
}
