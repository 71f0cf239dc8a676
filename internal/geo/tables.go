// Tamil Nadu revenue geography: districts, taluks per district and villages
// per taluk.

package geo

var districts = []string{
	"Ariyalur",
	"Chengalpattu",
	"Chennai",
	"Coimbatore",
	"Cuddalore",
	"Dharmapuri",
	"Dindigul",
	"Erode",
	"Kallakurichi",
	"Kanchipuram",
	"Kanyakumari",
	"Karur",
	"Krishnagiri",
	"Madurai",
	"Mayiladuthurai",
	"Nagapattinam",
	"Namakkal",
	"Nilgiris",
	"Perambalur",
	"Pudukkottai",
	"Ramanathapuram",
	"Ranipet",
	"Salem",
	"Sivaganga",
	"Tenkasi",
	"Thanjavur",
	"Theni",
	"Thoothukudi",
	"Tiruchirappalli",
	"Tirunelveli",
	"Tirupathur",
	"Tiruppur",
	"Tiruvallur",
	"Tiruvannamalai",
	"Tiruvarur",
	"Vellore",
	"Viluppuram",
	"Virudhunagar",
}

var taluks = map[string][]string{
	"Ariyalur": {"Ariyalur", "Andimadam", "Sendurai", "Udayarpalayam"},
	"Chengalpattu": {"Chengalpattu", "Cheyyur", "Maduranthakam", "Pallavaram", "Tambaram", "Thiruporur", "Tirukalukundram", "Vandalur"},
	"Chennai": {"Alandur", "Ambattur", "Aminjikarai", "Ayanavaram", "Egmore", "Guindy", "Madhavaram", "Maduravoyal", "Mambalam", "Mylapore", "Perambur", "Purasawalkam", "Sholinganallur", "Tiruvottiyur", "Velachery"},
	"Coimbatore": {"Anaimalai", "Annur", "Coimbatore North", "Coimbatore South", "Kinathukadavu", "Madukkarai", "Mettupalayam", "Pollachi", "Perur", "Sulur", "Valparai"},
	"Cuddalore": {"Cuddalore", "Bhuvanagiri", "Chidambaram", "Kattumannarkoil", "Kurinjipadi", "Panruti", "Srimushnam", "Tittakudi", "Veppur", "Virudhachalam"},
	"Dharmapuri": {"Dharmapuri", "Harur", "Karimangalam", "Nallampalli", "Palacode", "Pappireddipatti", "Pennagaram"},
	"Dindigul": {"Dindigul East", "Dindigul West", "Attur", "Gujiliamparai", "Kodaikanal", "Natham", "Nilakottai", "Oddanchatram", "Palani", "Vedasandur"},
	"Erode": {"Erode", "Anthiyur", "Bhavani", "Gobichettipalayam", "Kodumudi", "Modakkurichi", "Nambiyur", "Perundurai", "Sathyamangalam", "Thalavadi"},
	"Kallakurichi": {"Kallakurichi", "Chinnasalem", "Kalvarayan Hills", "Sankarapuram", "Tirukoilur", "Ulundurpet"},
	"Kanchipuram": {"Kanchipuram", "Kundrathur", "Sriperumbudur", "Uthiramerur", "Walajabad"},
	"Kanyakumari": {"Agastheeswaram", "Kalkulam", "Killiyoor", "Thiruvattar", "Thovalai", "Vilavancode"},
	"Karur": {"Karur", "Aravakurichi", "Kadavur", "Krishnarayapuram", "Kulithalai", "Manmangalam", "Pugalur"},
	"Krishnagiri": {"Krishnagiri", "Anchetty", "Bargur", "Hosur", "Pochampalli", "Shoolagiri", "Thally", "Uthangarai"},
	"Madurai": {"Madurai East", "Madurai North", "Madurai South", "Madurai West", "Melur", "Peraiyur", "Thirumangalam", "Thiruparankundram", "Usilampatti", "Vadipatti"},
	"Mayiladuthurai": {"Mayiladuthurai", "Kuthalam", "Sirkali", "Tharangambadi"},
	"Nagapattinam": {"Nagapattinam", "Kilvelur", "Thirukkuvalai", "Vedaranyam"},
	"Namakkal": {"Namakkal", "Kollimalai", "Kumarapalayam", "Mohanur", "Paramathi Velur", "Rasipuram", "Senthamangalam", "Tiruchengode"},
	"Nilgiris": {"Udhagamandalam", "Coonoor", "Gudalur", "Kotagiri", "Kundah", "Pandalur"},
	"Perambalur": {"Perambalur", "Alathur", "Kunnam", "Veppanthattai"},
	"Pudukkottai": {"Pudukkottai", "Alangudi", "Aranthangi", "Avudaiyarkoil", "Gandarvakottai", "Iluppur", "Karambakudi", "Kulathur", "Manamelkudi", "Ponnamaravathi", "Thirumayam"},
	"Ramanathapuram": {"Ramanathapuram", "Kadaladi", "Kamuthi", "Kilaselvanur", "Mudukulathur", "Paramakudi", "Rajasingamangalam", "Rameswaram", "Tiruvadanai"},
	"Ranipet": {"Ranipet", "Arakkonam", "Arcot", "Kalavai", "Nemili", "Sholinghur", "Wallajah"},
	"Salem": {"Salem North", "Salem South", "Salem West", "Attur", "Edappadi", "Gangavalli", "Kadaiyampatti", "Mettur", "Omalur", "Pethanaickenpalayam", "Sankari", "Vazhapadi", "Yercaud"},
	"Sivaganga": {"Sivaganga", "Devakottai", "Ilayangudi", "Kalayarkoil", "Karaikudi", "Manamadurai", "Singampunari", "Thirupuvanam"},
	"Tenkasi": {"Tenkasi", "Alangulam", "Kadayanallur", "Sankarankovil", "Shenkottai", "Sivagiri", "Thiruvengadam", "V.K.Pudur"},
	"Thanjavur": {"Thanjavur", "Boothalur", "Kumbakonam", "Orathanadu", "Papanasam", "Pattukkottai", "Peravurani", "Thiruvaiyaru", "Thiruvidaimarudur"},
	"Theni": {"Theni", "Andipatti", "Bodinayakanur", "Periyakulam", "Uthamapalayam"},
	"Thoothukudi": {"Thoothukudi", "Eral", "Ettayapuram", "Kayathar", "Kovilpatti", "Ottapidaram", "Sathankulam", "Srivaikuntam", "Tiruchendur", "Vilathikulam"},
	"Tiruchirappalli": {"Tiruchirappalli East", "Tiruchirappalli West", "Lalgudi", "Manachanallur", "Manapparai", "Musiri", "Srirangam", "Thiruverumbur", "Thottiyam", "Thuraiyur"},
	"Tirunelveli": {"Tirunelveli", "Ambasamudram", "Cheranmahadevi", "Manur", "Nanguneri", "Palayamkottai", "Radhapuram", "Thisayanvilai"},
	"Tirupathur": {"Tirupathur", "Ambur", "Natrampalli", "Vaniyambadi"},
	"Tiruppur": {"Tiruppur North", "Tiruppur South", "Avinashi", "Dharapuram", "Kangayam", "Madathukulam", "Palladam", "Udhayarpalayam", "Udumalaipettai"},
	"Tiruvallur": {"Tiruvallur", "Avadi", "Gummidipoondi", "Pallipattu", "Ponneri", "Poonamallee", "R.K. Pet", "Thiruthani", "Uthukkottai"},
	"Tiruvannamalai": {"Tiruvannamalai", "Arni", "Chengam", "Chetpet", "Cheyyar", "Jamunamarathur", "Kalasapakkam", "Kilpennathur", "Polur", "Thandarampattu", "Vandavasi"},
	"Tiruvarur": {"Tiruvarur", "Kodavasal", "Koothanallur", "Mannargudi", "Nannilam", "Needamangalam", "Thiruthuraipoondi", "Valangaiman"},
	"Vellore": {"Vellore", "Anaicut", "Gudiyatham", "K.V. Kuppam", "Katpadi", "Pernambut"},
	"Viluppuram": {"Viluppuram", "Gingee", "Kandachipuram", "Marakkanam", "Melmalayanur", "Tindivanam", "Vikravandi"},
	"Virudhunagar": {"Virudhunagar", "Aruppukkottai", "Kariapatti", "Rajapalayam", "Sathur", "Sivakasi", "Srivilliputhur", "Tiruchuli", "Vathirairuppu"},
}

var villages = map[string][]string{
	"Mylapore": {"Mylapore North", "Mylapore South", "Santhome", "Mandaveli", "Alwarpet", "Luz", "Abiramapuram"},
	"Guindy": {"Guindy East", "Saidapet", "Kotturpuram", "Adyar", "Besant Nagar", "Little Mount", "Ekkatuthangal"},
	"Pollachi": {"Achipatti", "Annamalai", "Gopalapuram", "Kanjampatti", "Nallur", "Singanallur", "Zamin Uthukuli", "Suleeswaranpatti"},
	"Melur": {"Alagarkoil", "Arittapatti", "Karisalpatti", "Melavalavu", "Navinipatti", "Therku Theru", "Kottampatti", "Attapatti"},
}

var defaultVillages = []string{"Panchayat Village 1", "Panchayat Village 2", "Block Center", "Village Main Road", "Local Area Unit"}
