/*
Package database provides typed access to an embedded transactional store.

Records are Go structs with a primary key. A Driver opens a storage location
and runs units of work on its Context: Read for plain reads and ReadWrite for
write brackets that are committed as one transaction.

	d, err := database.Open(database.Config{Path: "/var/lib/app/db.bbolt"})
	if err != nil {
		return err
	}
	defer d.Close()

	err = d.ReadWrite(func(c *database.Context) {
		agent := database.CreateObject[Agent](c)
		agent.Status = "active"
	})

	active := database.Objects[Agent](d, database.Where(query.MustParse("status == active")))

Inside a write bracket every record handed out by the Context is tracked:
changes made to it are written when the bracket commits. Outside of a write
bracket records are copies and changes to them are not persisted.

Subscriptions deliver query results and single records whenever a commit of
any Driver of the same location changes them:

	l := database.Subscribe[Agent](d, database.Where(query.MustParse("status == active")), func(agents []*Agent) {
		// ...
	})
	defer l.Cancel()

Storage engines register themselves in the storage package. The bbolt,
badger, sqlite and hashmap engines are always available.
*/
package database
